package engine

import "pose-play/server/internal/model"

// 每种节点类型的控制器逻辑。按封闭的类型集合做 switch 分发；
// 未识别的类型字符串落到 no-op 分支——坏的授权内容最多让那一步
// 什么都不做，不会让 tick 循环崩掉。

// handleNext 处理 NEXT 命令（手动点击或定时器自动触发）。
func handleNext(s *model.Session, source string) {
	node := s.Node()
	if node == nil {
		return
	}

	switch node.Type {
	case model.NodeIntro, model.NodeOutro:
		dialogueNext(s, node)
	case model.NodeTween:
		// TWEEN 不可步进：NEXT 一律提前结束，跳过剩余重播。
		advanceToNode(s, s.NodeIndex+1, model.ReasonTweenSkipped)
	case model.NodePoseMatch:
		poseMatchNext(s, node, source)
	case model.NodeIntuition, model.NodeInsight:
		// 答案在派发 NEXT 之前已通过遥测记录，这里直接转移。
		advanceToNode(s, s.NodeIndex+1, model.ReasonNextCommand)
	default:
		// 未知类型：no-op 控制器。
	}
}

// dialogueNext 推进 INTRO/OUTRO 的台词游标。
func dialogueNext(s *model.Session, node *model.StateNode) {
	if len(node.Lines) == 0 {
		advanceToNode(s, s.NodeIndex+1, model.ReasonNoDialogueLines)
		return
	}

	if s.DialogueIndex+1 < len(node.Lines) {
		s.DialogueIndex++
		s.Flags.ShowCursor = false
		armDialogueTimers(s, node)
		emitTelemetry(s, model.TelemetryEvent{
			Type:          model.TelemetryDialogueNext,
			DialogueIndex: s.DialogueIndex,
		})
		return
	}

	emitTelemetry(s, model.TelemetryEvent{
		Type:          model.TelemetryDialogueEnd,
		DialogueIndex: s.DialogueIndex,
	})
	advanceToNode(s, s.NodeIndex+1, model.ReasonDialogueFinished)
}

// poseMatchNext 推进 POSE_MATCH 步骤。
// 停留门：进入步骤后至少停留 HoldMS 才允许任何推进（防瞬时假匹配）。
// 门后规则：手动点击总是放行；自动推进只在当前已匹配时放行。
func poseMatchNext(s *model.Session, node *model.StateNode, source string) {
	if s.Clock.Now-s.StepEnteredAt < s.Settings.Match.HoldMS {
		return
	}
	auto := source == model.SourceAuto
	if auto && !s.PoseMatch.Matched {
		return
	}

	if s.StepIndex+1 < len(node.PoseIDs) {
		s.StepIndex++
		s.StepEnteredAt = s.Clock.Now
		s.PoseMatch = freshPoseMatch(node, s.StepIndex)
		CancelByTag(s, model.TagAutoNext)

		evtType := model.TelemetryPoseClickNext
		if auto {
			evtType = model.TelemetryPoseAutoNext
		}
		emitTelemetry(s, model.TelemetryEvent{
			Type:         evtType,
			StepIndex:    s.StepIndex,
			TargetPoseID: s.PoseMatch.TargetPoseID,
		})
		return
	}

	evtType := model.TelemetryPoseClickFinish
	reason := model.ReasonPoseClickFinish
	if auto {
		evtType = model.TelemetryPoseAutoFinish
		reason = model.ReasonPoseAutoFinish
	}
	emitTelemetry(s, model.TelemetryEvent{
		Type:         evtType,
		StepIndex:    s.StepIndex,
		TargetPoseID: s.PoseMatch.TargetPoseID,
		Overall:      s.PoseMatch.Overall,
	})
	advanceToNode(s, s.NodeIndex+1, reason)
}

// advanceToNode 执行节点转移：先上报 STATE_EXIT，再进入目标节点；
// 越过末尾即关卡完成，进入终态。
func advanceToNode(s *model.Session, idx int, reason string) {
	if node := s.Node(); node != nil {
		emitTelemetry(s, model.TelemetryEvent{
			Type:   model.TelemetryStateExit,
			Reason: reason,
		})
	}

	if idx >= len(s.Nodes) {
		// NodeIndex == len(Nodes) 只在这个瞬间出现，紧跟 ON_COMPLETE。
		s.NodeIndex = len(s.Nodes)
		s.Completed = true
		s.Timers = nil
		emitTelemetry(s, model.TelemetryEvent{Type: model.TelemetryLevelComplete})
		emitOnComplete(s)
		return
	}

	s.NodeIndex = idx
	enterNode(s)
}

// enterNode 进入当前游标指向的节点：清理上一节点的作用域定时器，
// 重置子游标，按类型初始化比对状态并布置入场定时器。
func enterNode(s *model.Session) {
	node := s.Node()
	if node == nil {
		return
	}

	CancelByTag(s, model.TagCursorDelay)
	CancelByTag(s, model.TagAutoNext)
	CancelByTag(s, model.TagAutoAdvance)
	CancelByTag(s, model.TagTweenStep)

	s.DialogueIndex = 0
	s.StepIndex = 0
	s.TweenPlayIndex = 0
	s.StepEnteredAt = s.Clock.Now
	s.Flags.ShowCursor = false

	if node.Type == model.NodePoseMatch {
		s.PoseMatch = freshPoseMatch(node, 0)
	} else {
		s.PoseMatch = model.PoseMatchState{}
	}

	emitTelemetry(s, model.TelemetryEvent{Type: model.TelemetryStateEnter})
	emitRecordingHint(s, recordingEnabled(node.Type), node.Type, s.NodeIndex)

	scheduleCursorDelay(s, node)
	armEntryTimers(s, node)
}

// freshPoseMatch 为指定步骤初始化比对状态：0 分、未匹配、新目标。
func freshPoseMatch(node *model.StateNode, step int) model.PoseMatchState {
	ps := model.PoseMatchState{
		StepIndex:    step,
		ThresholdPct: node.DefaultTolerance,
	}
	if step < len(node.PoseIDs) {
		ps.TargetPoseID = node.PoseIDs[step]
	}
	if step < len(node.Tolerances) && node.Tolerances[step] > 0 {
		ps.ThresholdPct = node.Tolerances[step]
	}
	return ps
}

// scheduleCursorDelay 布置光标延时：节点级配置优先，否则用全局设置。
func scheduleCursorDelay(s *model.Session, node *model.StateNode) {
	if s.Flags.ShowCursor {
		return
	}
	delay := node.CursorDelayMS
	if delay <= 0 {
		delay = s.Settings.Cursor.DelayMS
	}
	if delay <= 0 {
		return
	}
	Schedule(s, model.TagCursorDelay, model.TimerShowCursor, s.Clock.Now+delay, "")
}

// armEntryTimers 按节点类型布置入场定时器。
func armEntryTimers(s *model.Session, node *model.StateNode) {
	switch node.Type {
	case model.NodeIntro, model.NodeOutro:
		armDialogueTimers(s, node)
	case model.NodeIntuition, model.NodeInsight:
		if node.AutoAdvanceMS > 0 {
			Schedule(s, model.TagAutoAdvance, model.TimerAutoAdvance,
				s.Clock.Now+node.AutoAdvanceMS, model.ReasonAutoAdvance)
		}
	case model.NodeTween:
		Schedule(s, model.TagTweenStep, model.TimerTweenReplay,
			s.Clock.Now+tweenDuration(node), "")
	}
	// POSE_MATCH 的自动推进在匹配成功后由 ensureAutoTimers 布置。
}

// armDialogueTimers 为当前台词重新布置光标延时与逐句自动推进。
func armDialogueTimers(s *model.Session, node *model.StateNode) {
	scheduleCursorDelay(s, node)
	if node.AutoAdvanceMS > 0 {
		Schedule(s, model.TagAutoNext, model.TimerAutoNext, s.Clock.Now+node.AutoAdvanceMS, "")
	}
}

// tweenDuration 是一遍过渡动画的总时长：逐段时长 ×（姿势数-1）。
func tweenDuration(node *model.StateNode) float64 {
	segments := len(node.PoseIDs) - 1
	if segments < 1 {
		segments = 1
	}
	dur := node.StepDurationMS
	if dur <= 0 {
		dur = 1000
	}
	return dur * float64(segments)
}

// applyTimer 把到期定时器映射到动作。
func applyTimer(s *model.Session, t model.Timer) {
	switch t.Kind {
	case model.TimerShowCursor:
		if !s.Flags.ShowCursor {
			s.Flags.ShowCursor = true
			emitTelemetry(s, model.TelemetryEvent{Type: model.TelemetryCursorShown})
		}
	case model.TimerAutoNext:
		handleNext(s, model.SourceAuto)
	case model.TimerAutoAdvance:
		reason := t.Reason
		if reason == "" {
			reason = model.ReasonAutoAdvance
		}
		advanceToNode(s, s.NodeIndex+1, reason)
	case model.TimerTweenReplay:
		tweenReplay(s)
	}
}

// tweenReplay 推进过渡动画的重播计数；重播次数用完后结束节点。
func tweenReplay(s *model.Session) {
	node := s.Node()
	if node == nil || node.Type != model.NodeTween {
		return
	}

	reps := s.Settings.Reps.Tween
	if reps < 1 {
		reps = 1
	}
	if s.TweenPlayIndex+1 < reps {
		s.TweenPlayIndex++
		emitTelemetry(s, model.TelemetryEvent{
			Type:      model.TelemetryTweenReplay,
			StepIndex: s.TweenPlayIndex,
		})
		Schedule(s, model.TagTweenStep, model.TimerTweenReplay,
			s.Clock.Now+tweenDuration(node), "")
		return
	}

	advanceToNode(s, s.NodeIndex+1, model.ReasonTweenFinished)
}

// ensureAutoTimers 在每个 TICK 末尾做幂等的补布置：
// 只有当对应标签不存在时才调度，不会重复布置同一个定时器。
func ensureAutoTimers(s *model.Session) {
	node := s.Node()
	if node == nil {
		return
	}

	switch node.Type {
	case model.NodePoseMatch:
		if s.PoseMatch.Matched {
			if !hasTag(s, model.TagAutoNext) {
				at := s.StepEnteredAt + s.Settings.Match.HoldMS
				if at < s.Clock.Now {
					at = s.Clock.Now
				}
				Schedule(s, model.TagAutoNext, model.TimerAutoNext, at, "")
			}
		} else {
			// 分数跌回阈值以下：撤掉尚未触发的自动推进。
			CancelByTag(s, model.TagAutoNext)
		}
	case model.NodeTween:
		if !hasTag(s, model.TagTweenStep) {
			Schedule(s, model.TagTweenStep, model.TimerTweenReplay,
				s.Clock.Now+tweenDuration(node), "")
		}
	case model.NodeIntro, model.NodeOutro:
		if node.AutoAdvanceMS > 0 && !hasTag(s, model.TagAutoNext) {
			Schedule(s, model.TagAutoNext, model.TimerAutoNext, s.Clock.Now+node.AutoAdvanceMS, "")
		}
	case model.NodeIntuition, model.NodeInsight:
		if node.AutoAdvanceMS > 0 && !hasTag(s, model.TagAutoAdvance) {
			Schedule(s, model.TagAutoAdvance, model.TimerAutoAdvance,
				s.Clock.Now+node.AutoAdvanceMS, model.ReasonAutoAdvance)
		}
	}
}
