package model

// NodeType 表示关卡序列中一个节点的类型。
// 已知类型之外的字符串会被归约器降级为 no-op 控制器，而不是报错。
type NodeType string

const (
	NodeIntro     NodeType = "intro"
	NodeIntuition NodeType = "intuition"
	NodeTween     NodeType = "tween"
	NodePoseMatch NodeType = "poseMatch"
	NodeInsight   NodeType = "insight"
	NodeOutro     NodeType = "outro"
)

// DialogueLine 表示一句旁白/对白。
type DialogueLine struct {
	Text      string `json:"text"`
	SpeakerID string `json:"speaker_id,omitempty"`
}

// InsightOption 表示 INSIGHT 节点中的一个选项。
type InsightOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// StateNode 是关卡回放序列中的一步，由 NodeBuilder 在会话创建时
// 一次性构建，之后不可变；运行期只移动 Session 的游标。
type StateNode struct {
	Type    NodeType `json:"type"`
	LevelID string   `json:"level_id"`

	// 可选的节点级延时（毫秒）。零值表示使用全局设置或不启用。
	CursorDelayMS float64 `json:"cursor_delay_ms,omitempty"`
	AutoAdvanceMS float64 `json:"auto_advance_ms,omitempty"`

	// INTRO/OUTRO：按序播放的台词。
	Lines []DialogueLine `json:"lines,omitempty"`

	// INTUITION：判断题。TrueFalseAnswer 在构建期已验证非空。
	Question        string `json:"question,omitempty"`
	TrueFalseAnswer *bool  `json:"true_false_answer,omitempty"`

	// INSIGHT：选择题选项与正确项 id（可缺省，缺省时作答不判分）。
	Options   []InsightOption `json:"options,omitempty"`
	CorrectID string          `json:"correct_id,omitempty"`

	// TWEEN/POSE_MATCH：姿势序列。TWEEN 至少 2 个，POSE_MATCH 至少 1 个。
	PoseIDs        []string `json:"pose_ids,omitempty"`
	StepDurationMS float64  `json:"step_duration_ms,omitempty"`
	Easing         string   `json:"easing,omitempty"`

	// POSE_MATCH：逐步阈值（百分比，构建期已按授权优先级解析完成，
	// 与 PoseIDs 对齐），运行期不再需要重新解析。
	Tolerances       []float64 `json:"tolerances,omitempty"`
	DefaultTolerance float64   `json:"default_tolerance,omitempty"`
}

// TimerKind 表示定时器到期时执行的动作。
type TimerKind string

const (
	// TimerShowCursor 到期后显示交互光标并上报遥测。
	TimerShowCursor TimerKind = "SHOW_CURSOR"
	// TimerAutoNext 到期后以 source:"auto" 重新进入 NEXT 处理。
	TimerAutoNext TimerKind = "AUTO_NEXT"
	// TimerAutoAdvance 到期后无条件切换到下一个节点。
	TimerAutoAdvance TimerKind = "AUTO_ADVANCE"
	// TimerTweenReplay 到期后推进过渡动画的重播计数，或结束 TWEEN 节点。
	TimerTweenReplay TimerKind = "TWEEN_REPLAY"
)

// 节点作用域的定时器标签。同一标签同一时刻只允许一个定时器存在：
// Schedule 会先取消同标签的旧定时器，避免重复触发泄漏。
const (
	TagCursorDelay = "cursor-delay"
	TagAutoNext    = "auto-next"
	TagAutoAdvance = "auto-advance"
	TagTweenStep   = "tween-step"
)

// Timer 是一个挂在逻辑时钟上的延迟动作。
// 不用 wall-clock 回调：每个 TICK 对比 At 与 Clock.Now，
// 暂停冻结逻辑时钟时定时器随之隐式挂起，无需特殊处理。
type Timer struct {
	ID     string    `json:"id"`
	Tag    string    `json:"tag"`
	Kind   TimerKind `json:"kind"`
	At     float64   `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// Clock 是会话的逻辑时钟（毫秒）。只由 TICK 命令推进，暂停期间冻结，
// 因此暂停时长永远不会被计入任何定时器的到期时间。
type Clock struct {
	Now     float64 `json:"now"`
	DT      float64 `json:"dt"`
	Elapsed float64 `json:"elapsed"`
}

// Flags 是影响状态转移的 UI 布尔位（例如暂停时不做自动推进）。
// Blocked 表示"姿势数据门"：设置要求的关键点类别在画面中不可用，
// 会话被挂起等待，等价于暂停但带原因。
type Flags struct {
	Paused        bool `json:"paused"`
	Blocked       bool `json:"blocked"`
	ShowCursor    bool `json:"show_cursor"`
	ShowSettings  bool `json:"show_settings"`
	ShowPauseMenu bool `json:"show_pause_menu"`
}

// FeatureScore 是单个角度特征的比对明细。
type FeatureScore struct {
	FeatureID string  `json:"feature_id"`
	DataKey   string  `json:"data_key"`
	LiveDeg   float64 `json:"live_deg"`
	TargetDeg float64 `json:"target_deg"`
	DiffDeg   float64 `json:"diff_deg"`
	Score     float64 `json:"score"`
	Weight    float64 `json:"weight"`
	// Computed 为 false 表示某一侧角度退化（零长度向量），按约定计 0 分。
	Computed bool `json:"computed"`
}

// PoseMatchState 是当前 POSE_MATCH 步骤的比对结果快照。
// Matched 永远等于 Overall >= ThresholdPct，随每次评分重新计算，
// 不允许独立设置。
type PoseMatchState struct {
	Overall      float64            `json:"overall"`
	PerSegment   map[string]float64 `json:"per_segment,omitempty"`
	PerFeature   []FeatureScore     `json:"per_feature,omitempty"`
	ThresholdPct float64            `json:"threshold_pct"`
	Matched      bool               `json:"matched"`
	TargetPoseID string             `json:"target_pose_id,omitempty"`
	StepIndex    int                `json:"step_index"`
	UpdatedAt    float64            `json:"updated_at"`
	BlockReason  string             `json:"block_reason,omitempty"`
}

// Session 是一次关卡游玩的完整运行时状态。
//
// 共享约定：归约器按"整体替换"处理 Session——每次 Reduce 克隆后修改并
// 返回新值，读者永远只看到完整成形的快照，因此读路径无需加锁。
type Session struct {
	PlayID  string `json:"play_id"`
	GameID  string `json:"game_id"`
	LevelID string `json:"level_id"`

	// 会话期不变：授权内容与构建好的节点序列。
	Game       *Game       `json:"-"`
	LevelIndex int         `json:"level_index"`
	Nodes      []StateNode `json:"nodes"`

	// 游标状态。NodeIndex 在关卡内单调不减；等于 len(Nodes) 仅在完成
	// 转移的瞬间出现，并立即伴随 ON_COMPLETE 效果。
	NodeIndex     int `json:"node_index"`
	DialogueIndex int `json:"dialogue_index"`
	StepIndex     int `json:"step_index"`

	// StepEnteredAt 记录当前节点/步骤进入时的逻辑时刻，
	// 用于 POSE_MATCH 的最短停留门（hold gate）判定。
	StepEnteredAt  float64 `json:"step_entered_at"`
	TweenPlayIndex int     `json:"tween_play_index"`

	PoseMatch PoseMatchState `json:"pose_match"`

	Clock    Clock    `json:"clock"`
	Flags    Flags    `json:"flags"`
	Settings Settings `json:"settings"`

	Timers []Timer `json:"timers,omitempty"`

	// Effects 是副作用出站箱：两次 drain 之间只增不减，
	// 只有显式 CONSUME_EFFECTS 命令才会清空。
	Effects []Effect `json:"effects,omitempty"`

	Completed bool `json:"completed"`
}

// Node 返回当前节点。越界（完成转移瞬间）返回 nil。
func (s *Session) Node() *StateNode {
	if s == nil || s.NodeIndex < 0 || s.NodeIndex >= len(s.Nodes) {
		return nil
	}
	return &s.Nodes[s.NodeIndex]
}

// Suspended 表示逻辑时钟当前是否冻结（暂停或数据门挂起）。
func (s *Session) Suspended() bool {
	return s.Flags.Paused || s.Flags.Blocked
}

// Clone 生成一个可独立修改的会话副本。Nodes 与 Game 在会话期不可变，
// 直接共享；可变切片与映射逐一拷贝。
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	next := *s

	if s.Timers != nil {
		next.Timers = make([]Timer, len(s.Timers))
		copy(next.Timers, s.Timers)
	}
	if s.Effects != nil {
		next.Effects = make([]Effect, len(s.Effects))
		copy(next.Effects, s.Effects)
	}
	if s.PoseMatch.PerFeature != nil {
		next.PoseMatch.PerFeature = make([]FeatureScore, len(s.PoseMatch.PerFeature))
		copy(next.PoseMatch.PerFeature, s.PoseMatch.PerFeature)
	}
	if s.PoseMatch.PerSegment != nil {
		next.PoseMatch.PerSegment = make(map[string]float64, len(s.PoseMatch.PerSegment))
		for k, v := range s.PoseMatch.PerSegment {
			next.PoseMatch.PerSegment[k] = v
		}
	}

	return &next
}
