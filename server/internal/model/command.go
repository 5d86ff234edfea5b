package model

// CommandType 表示进入归约器的命令类型。
type CommandType string

const (
	// CmdTick 推进逻辑时钟并轮询定时器，由宿主循环每帧派发一次。
	CmdTick CommandType = "TICK"
	// CmdNext 请求推进当前节点（台词下一句/姿势下一步/跳过过渡）。
	CmdNext CommandType = "NEXT"
	CmdPause  CommandType = "PAUSE"
	CmdResume CommandType = "RESUME"
	// CmdSetSetting 按点路径合并一项设置（如 "include.face"）。
	CmdSetSetting     CommandType = "SET_SETTING"
	CmdToggleSettings CommandType = "TOGGLE_SETTINGS"
	// CmdRestartLevel 丢弃当前会话并重建（create, don't repair）。
	CmdRestartLevel CommandType = "RESTART_LEVEL"
	// CmdPoseMatchScores 是比对引擎结果回流状态机的唯一通道。
	CmdPoseMatchScores CommandType = "POSE_MATCH_SCORES"
	// CmdConsumeEffects 由效果消费方在处理完 outbox 后派发，清空 Effects。
	CmdConsumeEffects CommandType = "CONSUME_EFFECTS"

	// 数据门命令：设置要求的关键点类别缺失/恢复时由 Runner 派发。
	CmdPoseMatchBlocked   CommandType = "POSE_MATCH_BLOCKED"
	CmdPoseMatchUnblocked CommandType = "POSE_MATCH_UNBLOCKED"
)

// NEXT 命令的来源。手动点击在停留门之后总是放行；
// 自动推进只在当前步骤已匹配时生效。
const (
	SourceClick = "click"
	SourceAuto  = "auto"
)

// Command 是归约器的输入。扁平结构，按 Type 取用对应字段。
type Command struct {
	Type CommandType `json:"type"`

	// TICK：本帧观测到的时间（毫秒）。DT 是未暂停期间的 wall-time 增量。
	Now     float64 `json:"now,omitempty"`
	DT      float64 `json:"dt,omitempty"`
	Elapsed float64 `json:"elapsed,omitempty"`

	// NEXT：click | auto。
	Source string `json:"source,omitempty"`

	// SET_SETTING：点路径与目标值。
	Path  string `json:"path,omitempty"`
	Value any    `json:"value,omitempty"`

	// POSE_MATCH_SCORES：引擎产出的完整评分快照。
	Scores *PoseMatchState `json:"scores,omitempty"`

	// POSE_MATCH_BLOCKED：挂起原因（如 "faceLandmarks missing"）。
	Reason string `json:"reason,omitempty"`
}

// TickCommand 构造一个 TICK 命令。
func TickCommand(now, dt, elapsed float64) Command {
	return Command{Type: CmdTick, Now: now, DT: dt, Elapsed: elapsed}
}

// NextCommand 构造一个 NEXT 命令。
func NextCommand(source string) Command {
	if source == "" {
		source = SourceClick
	}
	return Command{Type: CmdNext, Source: source}
}
