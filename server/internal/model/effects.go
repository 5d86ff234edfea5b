package model

// EffectType 表示出站箱中一个副作用描述符的类型。
type EffectType string

const (
	// EffectTelemetry 要求消费方上报一条遥测事件。
	EffectTelemetry EffectType = "TELEMETRY_EVENT"
	// EffectRecordingHint 要求录制协作方开/关姿势帧录制。
	EffectRecordingHint EffectType = "POSE_RECORDING_HINT"
	// EffectOnComplete 表示关卡已走完，会话进入终态。
	EffectOnComplete EffectType = "ON_COMPLETE"
)

// 遥测事件类型。事件只描述已发生的事实，由外部消费方决定如何上报。
const (
	TelemetrySessionStart        = "SESSION_START"
	TelemetryStateEnter          = "STATE_ENTER"
	TelemetryStateExit           = "STATE_EXIT"
	TelemetryDialogueNext        = "DIALOGUE_NEXT"
	TelemetryDialogueEnd         = "DIALOGUE_END"
	TelemetryTweenReplay         = "TWEEN_REPLAY"
	TelemetryPoseClickNext       = "POSE_MATCH_CLICK_NEXT"
	TelemetryPoseAutoNext        = "POSE_MATCH_AUTO_NEXT"
	TelemetryPoseClickFinish     = "POSE_MATCH_CLICK_FINISH"
	TelemetryPoseAutoFinish      = "POSE_MATCH_AUTO_FINISH"
	TelemetryCursorShown         = "CURSOR_SHOWN"
	TelemetryPaused              = "PAUSED"
	TelemetryResumed             = "RESUMED"
	TelemetryBlocked             = "POSE_DATA_BLOCKED"
	TelemetryUnblocked           = "POSE_DATA_UNBLOCKED"
	TelemetrySettingChanged      = "SETTING_CHANGED"
	TelemetryAnswerSubmitted     = "ANSWER_SUBMITTED"
	TelemetryLevelComplete       = "LEVEL_COMPLETE"
	TelemetryLevelRestart        = "LEVEL_RESTART"
)

// 节点转移原因，随 STATE_EXIT 事件上报。
const (
	ReasonDialogueFinished = "DIALOGUE_FINISHED"
	ReasonNoDialogueLines  = "NO_DIALOGUE_LINES"
	ReasonTweenSkipped     = "TWEEN_SKIPPED"
	ReasonTweenFinished    = "TWEEN_FINISHED"
	ReasonPoseClickFinish  = "POSE_MATCH_CLICK_FINISH"
	ReasonPoseAutoFinish   = "POSE_MATCH_AUTO_FINISH"
	ReasonAutoAdvance      = "AUTO_ADVANCE"
	ReasonNextCommand      = "NEXT_COMMAND"
)

// TelemetryEvent 是一条待上报的遥测事实。Seq 由遥测存储分配。
type TelemetryEvent struct {
	Seq     int64  `json:"seq,omitempty"`
	EventID string `json:"event_id,omitempty"`
	PlayID  string `json:"play_id,omitempty"`

	Type string `json:"type"`
	// At 是事件发生时的逻辑时刻（毫秒）。
	At        float64  `json:"at"`
	NodeIndex int      `json:"node_index"`
	StateType NodeType `json:"state_type,omitempty"`

	DialogueIndex int     `json:"dialogue_index,omitempty"`
	StepIndex     int     `json:"step_index,omitempty"`
	TargetPoseID  string  `json:"target_pose_id,omitempty"`
	Overall       float64 `json:"overall,omitempty"`
	Reason        string  `json:"reason,omitempty"`

	// SET_SETTING / ANSWER_SUBMITTED 附加字段。
	Path       string `json:"path,omitempty"`
	Value      any    `json:"value,omitempty"`
	QuestionID string `json:"question_id,omitempty"`
	Answer     string `json:"answer,omitempty"`
	Correct    *bool  `json:"correct,omitempty"`
}

// Effect 是出站箱中的一个副作用描述符。归约器只排队、不执行；
// 执行留给外部消费方，保证核心纯净可测。
type Effect struct {
	Type EffectType `json:"type"`

	// TELEMETRY_EVENT 载荷。
	Event *TelemetryEvent `json:"event,omitempty"`

	// POSE_RECORDING_HINT 载荷。
	Enabled   bool     `json:"enabled,omitempty"`
	StateType NodeType `json:"state_type,omitempty"`
	NodeIndex int      `json:"node_index,omitempty"`
}
