package model

// Game 是一棵授权内容树：一个游戏包含若干关卡。
// 内容由编辑器产出（本服务只读），加载后在会话期内不可变。
type Game struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Levels []Level `json:"levels"`
}

// PoseEntry 是关卡姿势表中的一项：目标关键点帧加可选的逐姿势阈值。
type PoseEntry struct {
	Frame LandmarkFrame `json:"frame"`
	// Tolerance 支持 0–1（按分数）与 0–100（按百分比）两种书写习惯，
	// 构建期统一归一化；零值表示未授权。
	Tolerance float64 `json:"tolerance,omitempty"`
}

// TimingContent 是关卡级的节奏参数（毫秒）。零值回退到全局设置。
type TimingContent struct {
	StepDurationMS float64 `json:"step_duration_ms,omitempty"`
	AutoAdvanceMS  float64 `json:"auto_advance_ms,omitempty"`
	CursorDelayMS  float64 `json:"cursor_delay_ms,omitempty"`
	Easing         string  `json:"easing,omitempty"`
}

// IntuitionContent 是判断题内容。Answer 必须显式给出，否则该节点被剔除。
type IntuitionContent struct {
	Question string `json:"question"`
	Answer   *bool  `json:"answer"`
}

// InsightContent 是选择题内容。
type InsightContent struct {
	Question  string          `json:"question"`
	Options   []InsightOption `json:"options"`
	CorrectID string          `json:"correct_id,omitempty"`
}

// Level 是一个关卡的全部授权内容。
type Level struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	Intro []DialogueLine `json:"intro,omitempty"`
	Outro []DialogueLine `json:"outro,omitempty"`

	Intuition *IntuitionContent `json:"intuition,omitempty"`
	Insight   *InsightContent   `json:"insight,omitempty"`

	// Poses 的键是姿势 id（如 "pose_1"），回放顺序由数字后缀稳定排序得出。
	Poses map[string]PoseEntry `json:"poses,omitempty"`

	// StepTolerances 按步骤覆盖阈值，优先级高于逐姿势阈值。
	StepTolerances []float64 `json:"step_tolerances,omitempty"`
	// DefaultTolerance 是节点级兜底阈值；零值回退到全局 70。
	DefaultTolerance float64 `json:"default_tolerance,omitempty"`

	Timing TimingContent `json:"timing,omitempty"`

	// Settings 是关卡级设置补丁（如关闭 face 比对），创建会话时合并。
	Settings *SettingsPatch `json:"settings,omitempty"`
}

// TargetFrame 返回某姿势 id 的目标帧；缺失返回 nil。
func (l *Level) TargetFrame(poseID string) *LandmarkFrame {
	if l == nil {
		return nil
	}
	entry, ok := l.Poses[poseID]
	if !ok {
		return nil
	}
	return &entry.Frame
}

// FindLevel 按 id 在游戏中定位关卡，返回下标。
func (g *Game) FindLevel(levelID string) (int, bool) {
	if g == nil {
		return 0, false
	}
	for i := range g.Levels {
		if g.Levels[i].ID == levelID {
			return i, true
		}
	}
	return 0, false
}
