package engine

import "pose-play/server/internal/model"

// Reduce 是状态机的唯一入口：接收当前会话与一条命令，返回演化后的
// 新会话。纯函数式约定——输入会话绝不被原地修改，调用方拿到的永远是
// 克隆后的完整快照，因此读路径无需加锁。
//
// 对输入域是全函数：未知命令、越界游标、已完成会话上的多余命令一律
// no-op（返回等价克隆），绝不 panic、绝不返回错误。
func Reduce(s *model.Session, cmd model.Command) *model.Session {
	if s == nil {
		return nil
	}
	next := s.Clone()

	// 终态之后只允许 drain 与重开，其余命令全部忽略。
	if next.Completed {
		switch cmd.Type {
		case model.CmdConsumeEffects:
			next.Effects = nil
		case model.CmdRestartLevel:
			return restart(next)
		}
		return next
	}

	switch cmd.Type {
	case model.CmdTick:
		reduceTick(next, cmd)
	case model.CmdNext:
		if !next.Suspended() {
			handleNext(next, cmd.Source)
		}
	case model.CmdPause:
		reducePause(next)
	case model.CmdResume:
		reduceResume(next)
	case model.CmdSetSetting:
		reduceSetSetting(next, cmd)
	case model.CmdToggleSettings:
		next.Flags.ShowSettings = !next.Flags.ShowSettings
	case model.CmdRestartLevel:
		return restart(next)
	case model.CmdPoseMatchScores:
		applyScores(next, cmd.Scores)
	case model.CmdConsumeEffects:
		next.Effects = nil
	case model.CmdPoseMatchBlocked:
		reduceBlocked(next, cmd.Reason)
	case model.CmdPoseMatchUnblocked:
		reduceUnblocked(next)
	}

	return next
}

// reduceTick 推进逻辑时钟并轮询定时器。挂起（暂停/数据门）期间时钟
// 冻结，定时器随之隐式挂起；挂起时长永远不会被计入任何到期时间。
func reduceTick(s *model.Session, cmd model.Command) {
	if s.Suspended() {
		return
	}

	s.Clock.Now += cmd.DT
	s.Clock.DT = cmd.DT
	s.Clock.Elapsed += cmd.DT

	RunDue(s, s.Clock.Now, applyTimer)
	ensureAutoTimers(s)
}

func reducePause(s *model.Session) {
	if s.Flags.Paused {
		return
	}
	s.Flags.Paused = true
	s.Flags.ShowPauseMenu = true
	emitTelemetry(s, model.TelemetryEvent{Type: model.TelemetryPaused})
}

func reduceResume(s *model.Session) {
	if !s.Flags.Paused {
		return
	}
	s.Flags.Paused = false
	s.Flags.ShowPauseMenu = false
	emitTelemetry(s, model.TelemetryEvent{Type: model.TelemetryResumed})

	// 光标还没显示过的话，恢复后从头重新计延时。
	if node := s.Node(); node != nil && !s.Flags.ShowCursor {
		scheduleCursorDelay(s, node)
	}
}

// reduceSetSetting 按点路径合并一项设置。路径未知或值类型不符时
// 静默忽略——设置面板不应该能把会话打挂。
func reduceSetSetting(s *model.Session, cmd model.Command) {
	if !s.Settings.ApplyPath(cmd.Path, cmd.Value) {
		return
	}
	emitTelemetry(s, model.TelemetryEvent{
		Type:  model.TelemetrySettingChanged,
		Path:  cmd.Path,
		Value: cmd.Value,
	})
}

// applyScores 把比对引擎的评分快照写回会话。
// 过滤三类陈旧/错位输入：非 POSE_MATCH 节点、步骤下标不符、目标姿势不符
// （评分是异步回流的，节点或步骤可能在评分飞行期间已经切换）。
func applyScores(s *model.Session, scores *model.PoseMatchState) {
	if scores == nil {
		return
	}
	node := s.Node()
	if node == nil || node.Type != model.NodePoseMatch {
		return
	}
	if scores.StepIndex != s.StepIndex {
		return
	}
	if scores.TargetPoseID != "" && scores.TargetPoseID != s.PoseMatch.TargetPoseID {
		return
	}

	threshold := s.PoseMatch.ThresholdPct
	s.PoseMatch = *scores
	s.PoseMatch.StepIndex = s.StepIndex
	s.PoseMatch.TargetPoseID = node.PoseIDs[s.StepIndex]
	s.PoseMatch.ThresholdPct = threshold
	s.PoseMatch.Matched = s.PoseMatch.Overall >= threshold
	s.PoseMatch.UpdatedAt = s.Clock.Now
	s.PoseMatch.BlockReason = ""
}

// reduceBlocked 进入数据门挂起：设置要求的关键点类别在画面中缺失。
// 效果等价于暂停（时钟冻结、定时器挂起），但带原因且比对结果清零。
func reduceBlocked(s *model.Session, reason string) {
	if s.Flags.Blocked {
		s.PoseMatch.BlockReason = reason
		return
	}
	s.Flags.Blocked = true

	if node := s.Node(); node != nil && node.Type == model.NodePoseMatch {
		s.PoseMatch = freshPoseMatch(node, s.StepIndex)
		s.PoseMatch.BlockReason = reason
	}
	emitTelemetry(s, model.TelemetryEvent{
		Type:   model.TelemetryBlocked,
		Reason: reason,
	})
}

func reduceUnblocked(s *model.Session) {
	if !s.Flags.Blocked {
		return
	}
	s.Flags.Blocked = false
	s.PoseMatch.BlockReason = ""
	emitTelemetry(s, model.TelemetryEvent{Type: model.TelemetryUnblocked})
}
