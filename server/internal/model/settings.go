package model

// IncludeSettings 按身体区域开关参与比对的特征类别。
type IncludeSettings struct {
	Body      bool `json:"body" yaml:"body"`
	LeftHand  bool `json:"left_hand" yaml:"left_hand"`
	RightHand bool `json:"right_hand" yaml:"right_hand"`
	Face      bool `json:"face" yaml:"face"`
}

// StateSettings 按节点类型开关 NodeBuilder 的纳入。
type StateSettings struct {
	Intro     bool `json:"intro" yaml:"intro"`
	Intuition bool `json:"intuition" yaml:"intuition"`
	Tween     bool `json:"tween" yaml:"tween"`
	PoseMatch bool `json:"pose_match" yaml:"pose_match"`
	Insight   bool `json:"insight" yaml:"insight"`
	Outro     bool `json:"outro" yaml:"outro"`
}

// RepsSettings 是重复次数：TWEEN 的整段重播数与 POSE_MATCH 的序列重复数。
type RepsSettings struct {
	Tween     int `json:"tween" yaml:"tween"`
	PoseMatch int `json:"pose_match" yaml:"pose_match"`
}

// CursorSettings 只影响光标延时，核心逻辑不消费其余展示配置。
type CursorSettings struct {
	DelayMS float64 `json:"delay_ms" yaml:"delay_ms"`
}

// MatchSettings 是比对引擎相关的运行参数。
type MatchSettings struct {
	// ThresholdPct 是全局兜底阈值（节点/姿势未授权时生效）。
	ThresholdPct float64 `json:"threshold_pct" yaml:"threshold_pct"`
	// HoldMS 是最短停留门：进入步骤后至少停留这么久才允许推进。
	HoldMS float64 `json:"hold_ms" yaml:"hold_ms"`
	// IntervalMS 是评分节流周期，独立于渲染/tick 频率。
	IntervalMS float64 `json:"interval_ms" yaml:"interval_ms"`
}

// UISettings 纯展示位，核心逻辑除延时外不读取。
type UISettings struct {
	ShowSkeleton bool   `json:"show_skeleton" yaml:"show_skeleton"`
	Theme        string `json:"theme" yaml:"theme"`
}

// Settings 是与引擎默认值合并后的生效配置。
type Settings struct {
	Include IncludeSettings `json:"include" yaml:"include"`
	States  StateSettings   `json:"states" yaml:"states"`
	Reps    RepsSettings    `json:"reps" yaml:"reps"`
	Cursor  CursorSettings  `json:"cursor" yaml:"cursor"`
	Match   MatchSettings   `json:"match" yaml:"match"`
	UI      UISettings      `json:"ui" yaml:"ui"`
	// LogFPS 是录制协作方的采帧频率，核心只透传。
	LogFPS int `json:"log_fps" yaml:"log_fps"`
}

// DefaultSettings 返回引擎默认配置。所有类别与节点类型默认启用。
func DefaultSettings() Settings {
	return Settings{
		Include: IncludeSettings{Body: true, LeftHand: true, RightHand: true, Face: true},
		States:  StateSettings{Intro: true, Intuition: true, Tween: true, PoseMatch: true, Insight: true, Outro: true},
		Reps:    RepsSettings{Tween: 2, PoseMatch: 1},
		Cursor:  CursorSettings{DelayMS: 1500},
		Match:   MatchSettings{ThresholdPct: 70, HoldMS: 500, IntervalMS: 200},
		UI:      UISettings{ShowSkeleton: true, Theme: "default"},
		LogFPS:  5,
	}
}

// SettingsPatch 是外部传入的部分覆盖。指针区分"未提供"与"显式 false/0"。
type SettingsPatch struct {
	Include *struct {
		Body      *bool `json:"body"`
		LeftHand  *bool `json:"left_hand"`
		RightHand *bool `json:"right_hand"`
		Face      *bool `json:"face"`
	} `json:"include"`
	States *struct {
		Intro     *bool `json:"intro"`
		Intuition *bool `json:"intuition"`
		Tween     *bool `json:"tween"`
		PoseMatch *bool `json:"pose_match"`
		Insight   *bool `json:"insight"`
		Outro     *bool `json:"outro"`
	} `json:"states"`
	Reps *struct {
		Tween     *int `json:"tween"`
		PoseMatch *int `json:"pose_match"`
	} `json:"reps"`
	Cursor *struct {
		DelayMS *float64 `json:"delay_ms"`
	} `json:"cursor"`
	Match *struct {
		ThresholdPct *float64 `json:"threshold_pct"`
		HoldMS       *float64 `json:"hold_ms"`
		IntervalMS   *float64 `json:"interval_ms"`
	} `json:"match"`
	LogFPS *int `json:"log_fps"`
}

// Merge 将补丁合并进当前设置并返回合并结果。
func (s Settings) Merge(p *SettingsPatch) Settings {
	if p == nil {
		return s
	}
	if p.Include != nil {
		setBool(&s.Include.Body, p.Include.Body)
		setBool(&s.Include.LeftHand, p.Include.LeftHand)
		setBool(&s.Include.RightHand, p.Include.RightHand)
		setBool(&s.Include.Face, p.Include.Face)
	}
	if p.States != nil {
		setBool(&s.States.Intro, p.States.Intro)
		setBool(&s.States.Intuition, p.States.Intuition)
		setBool(&s.States.Tween, p.States.Tween)
		setBool(&s.States.PoseMatch, p.States.PoseMatch)
		setBool(&s.States.Insight, p.States.Insight)
		setBool(&s.States.Outro, p.States.Outro)
	}
	if p.Reps != nil {
		setInt(&s.Reps.Tween, p.Reps.Tween)
		setInt(&s.Reps.PoseMatch, p.Reps.PoseMatch)
	}
	if p.Cursor != nil {
		setFloat(&s.Cursor.DelayMS, p.Cursor.DelayMS)
	}
	if p.Match != nil {
		setFloat(&s.Match.ThresholdPct, p.Match.ThresholdPct)
		setFloat(&s.Match.HoldMS, p.Match.HoldMS)
		setFloat(&s.Match.IntervalMS, p.Match.IntervalMS)
	}
	setInt(&s.LogFPS, p.LogFPS)
	return s
}

// ApplyPath 按点路径写入单项设置（SET_SETTING 命令）。
// 未识别的路径或类型不匹配返回 false，归约器按 no-op 处理——
// 坏路径的影响半径止于"这次设置没生效"。
func (s *Settings) ApplyPath(path string, value any) bool {
	switch path {
	case "include.body":
		return applyBool(&s.Include.Body, value)
	case "include.leftHand":
		return applyBool(&s.Include.LeftHand, value)
	case "include.rightHand":
		return applyBool(&s.Include.RightHand, value)
	case "include.face":
		return applyBool(&s.Include.Face, value)
	case "states.intro":
		return applyBool(&s.States.Intro, value)
	case "states.intuition":
		return applyBool(&s.States.Intuition, value)
	case "states.tween":
		return applyBool(&s.States.Tween, value)
	case "states.poseMatch":
		return applyBool(&s.States.PoseMatch, value)
	case "states.insight":
		return applyBool(&s.States.Insight, value)
	case "states.outro":
		return applyBool(&s.States.Outro, value)
	case "reps.tween":
		return applyInt(&s.Reps.Tween, value)
	case "reps.poseMatch":
		return applyInt(&s.Reps.PoseMatch, value)
	case "cursor.delayMs":
		return applyFloat(&s.Cursor.DelayMS, value)
	case "match.thresholdPct":
		return applyFloat(&s.Match.ThresholdPct, value)
	case "match.holdMs":
		return applyFloat(&s.Match.HoldMS, value)
	case "match.intervalMs":
		return applyFloat(&s.Match.IntervalMS, value)
	case "ui.showSkeleton":
		return applyBool(&s.UI.ShowSkeleton, value)
	case "ui.theme":
		str, ok := value.(string)
		if ok {
			s.UI.Theme = str
		}
		return ok
	case "logFps":
		return applyInt(&s.LogFPS, value)
	default:
		return false
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func applyBool(dst *bool, value any) bool {
	b, ok := value.(bool)
	if ok {
		*dst = b
	}
	return ok
}

// applyFloat 接受 float64 与 int（JSON 数字解码为 float64，内部调用可能传 int）。
func applyFloat(dst *float64, value any) bool {
	switch v := value.(type) {
	case float64:
		*dst = v
		return true
	case int:
		*dst = float64(v)
		return true
	default:
		return false
	}
}

func applyInt(dst *int, value any) bool {
	switch v := value.(type) {
	case float64:
		*dst = int(v)
		return true
	case int:
		*dst = v
		return true
	default:
		return false
	}
}
