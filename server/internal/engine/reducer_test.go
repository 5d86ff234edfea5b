package engine

import (
	"testing"

	"pose-play/server/internal/model"
)

func fullGame() *model.Game {
	yes := true
	return &model.Game{
		ID: "g1",
		Levels: []model.Level{{
			ID: "l1",
			Intro: []model.DialogueLine{
				{Text: "欢迎来到第一关"},
				{Text: "跟着示范做动作"},
			},
			Outro: []model.DialogueLine{{Text: "做得不错"}},
			Intuition: &model.IntuitionContent{
				Question: "手臂要伸直吗？",
				Answer:   &yes,
			},
			Insight: &model.InsightContent{
				Question:  "哪个要点最重要？",
				Options:   []model.InsightOption{{ID: "a", Label: "呼吸"}, {ID: "b", Label: "重心"}},
				CorrectID: "b",
			},
			Poses: map[string]model.PoseEntry{
				"pose_1": {},
				"pose_2": {},
			},
		}},
	}
}

// poseOnlyGame 只保留姿势表，配合关掉其余节点的设置可以得到单节点会话。
func poseOnlyGame() *model.Game {
	g := fullGame()
	g.Levels[0].Intro = nil
	g.Levels[0].Outro = nil
	g.Levels[0].Intuition = nil
	g.Levels[0].Insight = nil
	return g
}

func poseMatchSettings() model.Settings {
	s := model.DefaultSettings()
	s.States.Tween = false
	return s
}

func mustSession(t *testing.T, game *model.Game, settings model.Settings) *model.Session {
	t.Helper()
	s, err := NewSession("play-1", game, 0, settings)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s
}

// tick 以给定增量派发一次 TICK。
func tick(s *model.Session, dt float64) *model.Session {
	return Reduce(s, model.TickCommand(s.Clock.Now+dt, dt, s.Clock.Elapsed+dt))
}

func matchedScores(s *model.Session, overall float64) model.Command {
	return model.Command{
		Type: model.CmdPoseMatchScores,
		Scores: &model.PoseMatchState{
			Overall:      overall,
			StepIndex:    s.StepIndex,
			TargetPoseID: s.PoseMatch.TargetPoseID,
		},
	}
}

func telemetryTypes(s *model.Session) []string {
	var out []string
	for _, e := range s.Effects {
		if e.Type == model.EffectTelemetry && e.Event != nil {
			out = append(out, e.Event.Type)
		}
	}
	return out
}

func hasTelemetry(s *model.Session, evtType string) bool {
	for _, got := range telemetryTypes(s) {
		if got == evtType {
			return true
		}
	}
	return false
}

// TestNewSessionEntersFirstNode 验证会话创建进入首节点并上报开场遥测。
// 场景：完整授权内容创建会话后，首节点应为 INTRO，出站箱里应有
// SESSION_START 与 STATE_ENTER 两条事实，光标延时定时器已布置。
func TestNewSessionEntersFirstNode(t *testing.T) {
	s := mustSession(t, fullGame(), model.DefaultSettings())

	if node := s.Node(); node == nil || node.Type != model.NodeIntro {
		t.Fatalf("expected first node intro, got %+v", s.Node())
	}
	if !hasTelemetry(s, model.TelemetrySessionStart) || !hasTelemetry(s, model.TelemetryStateEnter) {
		t.Fatalf("expected SESSION_START and STATE_ENTER, got %v", telemetryTypes(s))
	}
	if !hasTag(s, model.TagCursorDelay) {
		t.Fatalf("expected cursor delay timer armed")
	}
}

// TestReduceDoesNotMutateInput 验证归约器不原地修改输入会话。
// 场景：对同一个会话快照派发 TICK，原快照的时钟、定时器、效果都不应变化。
func TestReduceDoesNotMutateInput(t *testing.T) {
	s := mustSession(t, fullGame(), model.DefaultSettings())
	effectsBefore := len(s.Effects)
	timersBefore := len(s.Timers)

	next := tick(s, 2000)

	if s.Clock.Now != 0 || len(s.Effects) != effectsBefore || len(s.Timers) != timersBefore {
		t.Fatalf("input session mutated: clock=%v effects=%d timers=%d", s.Clock.Now, len(s.Effects), len(s.Timers))
	}
	if next.Clock.Now != 2000 {
		t.Fatalf("expected next clock 2000, got %v", next.Clock.Now)
	}
}

// TestDialogueStepping 验证 INTRO 的台词推进与结束转移。
// 场景：两句台词的 INTRO，第一次 NEXT 推进游标并隐藏光标，
// 第二次 NEXT 上报 DIALOGUE_END 并以 DIALOGUE_FINISHED 退出节点。
func TestDialogueStepping(t *testing.T) {
	s := mustSession(t, fullGame(), model.DefaultSettings())

	s = Reduce(s, model.NextCommand(model.SourceClick))
	if s.DialogueIndex != 1 {
		t.Fatalf("expected dialogue index 1, got %d", s.DialogueIndex)
	}
	if !hasTelemetry(s, model.TelemetryDialogueNext) {
		t.Fatalf("expected DIALOGUE_NEXT, got %v", telemetryTypes(s))
	}

	s = Reduce(s, model.NextCommand(model.SourceClick))
	if node := s.Node(); node == nil || node.Type != model.NodeIntuition {
		t.Fatalf("expected transition to intuition, got %+v", s.Node())
	}
	if !hasTelemetry(s, model.TelemetryDialogueEnd) || !hasTelemetry(s, model.TelemetryStateExit) {
		t.Fatalf("expected DIALOGUE_END and STATE_EXIT, got %v", telemetryTypes(s))
	}
	if s.DialogueIndex != 0 {
		t.Fatalf("expected dialogue cursor reset on node entry, got %d", s.DialogueIndex)
	}
}

// TestCursorShownAfterDelay 验证光标延时定时器按逻辑时钟触发。
// 场景：默认延时 1500ms，一次 1600ms 的 TICK 后光标应显示并上报 CURSOR_SHOWN。
func TestCursorShownAfterDelay(t *testing.T) {
	s := mustSession(t, fullGame(), model.DefaultSettings())

	s = tick(s, 1600)
	if !s.Flags.ShowCursor {
		t.Fatalf("expected cursor shown after delay")
	}
	if !hasTelemetry(s, model.TelemetryCursorShown) {
		t.Fatalf("expected CURSOR_SHOWN, got %v", telemetryTypes(s))
	}
	if hasTag(s, model.TagCursorDelay) {
		t.Fatalf("expected cursor timer consumed")
	}
}

// TestPoseMatchHoldGate 验证最短停留门拦截过早推进。
// 场景：进入步骤 100ms 后（HoldMS=500）点击 NEXT 应 no-op，
// 停留门过后再点击应推进步骤。
func TestPoseMatchHoldGate(t *testing.T) {
	s := mustSession(t, poseOnlyGame(), poseMatchSettings())
	if node := s.Node(); node == nil || node.Type != model.NodePoseMatch {
		t.Fatalf("expected pose match node, got %+v", s.Node())
	}

	s = tick(s, 100)
	s = Reduce(s, model.NextCommand(model.SourceClick))
	if s.StepIndex != 0 {
		t.Fatalf("expected hold gate to block advance, step=%d", s.StepIndex)
	}

	s = tick(s, 500)
	s = Reduce(s, model.NextCommand(model.SourceClick))
	if s.StepIndex != 1 {
		t.Fatalf("expected advance after hold, step=%d", s.StepIndex)
	}
	if !hasTelemetry(s, model.TelemetryPoseClickNext) {
		t.Fatalf("expected POSE_MATCH_CLICK_NEXT, got %v", telemetryTypes(s))
	}
	if s.PoseMatch.Matched || s.PoseMatch.Overall != 0 {
		t.Fatalf("expected fresh pose match state on step entry, got %+v", s.PoseMatch)
	}
	if s.PoseMatch.TargetPoseID != "pose_2" {
		t.Fatalf("expected target pose_2, got %q", s.PoseMatch.TargetPoseID)
	}
}

// TestPoseMatchAutoAdvance 验证匹配成功后的自动推进链路。
// 场景：评分过阈值后，TICK 末尾布置 auto-next 定时器；
// 定时器到期以 auto 来源触发推进，未匹配时 auto 不放行。
func TestPoseMatchAutoAdvance(t *testing.T) {
	s := mustSession(t, poseOnlyGame(), poseMatchSettings())

	// 未匹配时 auto 被挡（即便停留门已过）。
	s = tick(s, 600)
	s = Reduce(s, model.NextCommand(model.SourceAuto))
	if s.StepIndex != 0 {
		t.Fatalf("expected unmatched auto next to no-op, step=%d", s.StepIndex)
	}

	s = Reduce(s, matchedScores(s, 85))
	if !s.PoseMatch.Matched {
		t.Fatalf("expected matched at overall 85 vs threshold %v", s.PoseMatch.ThresholdPct)
	}

	// 本次 TICK 布置 auto-next，下一次 TICK 触发。
	s = tick(s, 10)
	if !hasTag(s, model.TagAutoNext) {
		t.Fatalf("expected auto-next armed after match")
	}
	s = tick(s, 10)
	if s.StepIndex != 1 {
		t.Fatalf("expected auto advance to step 1, step=%d", s.StepIndex)
	}
	if !hasTelemetry(s, model.TelemetryPoseAutoNext) {
		t.Fatalf("expected POSE_MATCH_AUTO_NEXT, got %v", telemetryTypes(s))
	}
}

// TestPoseMatchScoreDropCancelsAutoNext 验证分数跌回阈值以下撤销自动推进。
// 场景：匹配后布置了 auto-next，下一帧评分跌落，定时器应被取消。
func TestPoseMatchScoreDropCancelsAutoNext(t *testing.T) {
	s := mustSession(t, poseOnlyGame(), poseMatchSettings())

	s = tick(s, 600)
	s = Reduce(s, matchedScores(s, 90))
	s = tick(s, 10)
	if !hasTag(s, model.TagAutoNext) {
		t.Fatalf("expected auto-next armed")
	}

	s = Reduce(s, matchedScores(s, 40))
	if s.PoseMatch.Matched {
		t.Fatalf("expected unmatched at overall 40")
	}
	s = tick(s, 1)
	if hasTag(s, model.TagAutoNext) {
		t.Fatalf("expected auto-next cancelled after score drop")
	}
	if s.StepIndex != 0 {
		t.Fatalf("expected no advance, step=%d", s.StepIndex)
	}
}

// TestPoseMatchFinishCompletesSession 验证最后一步推进进入终态。
// 场景：单节点两步的会话走完最后一步，Completed 置位、定时器清空、
// 出站箱包含 LEVEL_COMPLETE 与 ON_COMPLETE。
func TestPoseMatchFinishCompletesSession(t *testing.T) {
	s := mustSession(t, poseOnlyGame(), poseMatchSettings())

	s = tick(s, 600)
	s = Reduce(s, model.NextCommand(model.SourceClick)) // step 0 -> 1
	s = tick(s, 600)
	s = Reduce(s, model.NextCommand(model.SourceClick)) // step 1 -> finish

	if !s.Completed {
		t.Fatalf("expected session completed")
	}
	if len(s.Timers) != 0 {
		t.Fatalf("expected timers cleared on completion, got %d", len(s.Timers))
	}
	if !hasTelemetry(s, model.TelemetryLevelComplete) {
		t.Fatalf("expected LEVEL_COMPLETE, got %v", telemetryTypes(s))
	}
	found := false
	for _, e := range s.Effects {
		if e.Type == model.EffectOnComplete {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ON_COMPLETE effect")
	}

	// 终态后的普通命令全部 no-op。
	after := Reduce(s, model.NextCommand(model.SourceClick))
	if after.NodeIndex != s.NodeIndex || !after.Completed {
		t.Fatalf("expected commands after completion to no-op")
	}
}

// TestStaleScoresIgnored 验证陈旧评分被过滤。
// 场景：评分回流时步骤已切换（StepIndex 不符）或目标姿势不符，
// 评分不应写入当前状态。
func TestStaleScoresIgnored(t *testing.T) {
	s := mustSession(t, poseOnlyGame(), poseMatchSettings())

	s = Reduce(s, model.Command{
		Type: model.CmdPoseMatchScores,
		Scores: &model.PoseMatchState{
			Overall:   95,
			StepIndex: 1, // 当前是步骤 0
		},
	})
	if s.PoseMatch.Overall != 0 {
		t.Fatalf("expected stale step scores ignored, got %v", s.PoseMatch.Overall)
	}

	s = Reduce(s, model.Command{
		Type: model.CmdPoseMatchScores,
		Scores: &model.PoseMatchState{
			Overall:      95,
			StepIndex:    0,
			TargetPoseID: "pose_9",
		},
	})
	if s.PoseMatch.Overall != 0 {
		t.Fatalf("expected mismatched target scores ignored, got %v", s.PoseMatch.Overall)
	}
}

// TestPauseFreezesClockAndTimers 验证暂停冻结逻辑时钟。
// 场景：暂停期间 TICK 不推进时钟、定时器不触发；恢复后继续计时，
// 暂停时长不计入任何到期时间。
func TestPauseFreezesClockAndTimers(t *testing.T) {
	s := mustSession(t, fullGame(), model.DefaultSettings())

	s = tick(s, 1000)
	s = Reduce(s, model.Command{Type: model.CmdPause})
	if !s.Flags.Paused || !s.Flags.ShowPauseMenu {
		t.Fatalf("expected paused flags set")
	}

	s = tick(s, 5000)
	if s.Clock.Now != 1000 {
		t.Fatalf("expected clock frozen at 1000, got %v", s.Clock.Now)
	}
	if s.Flags.ShowCursor {
		t.Fatalf("expected cursor timer suspended during pause")
	}

	s = Reduce(s, model.Command{Type: model.CmdResume})
	if s.Flags.Paused || s.Flags.ShowPauseMenu {
		t.Fatalf("expected paused flags cleared")
	}
	s = tick(s, 600)
	if s.Clock.Now != 1600 {
		t.Fatalf("expected clock resumed to 1600, got %v", s.Clock.Now)
	}
	if !hasTelemetry(s, model.TelemetryPaused) || !hasTelemetry(s, model.TelemetryResumed) {
		t.Fatalf("expected PAUSED and RESUMED telemetry, got %v", telemetryTypes(s))
	}
}

// TestBlockedGateSuspendsSession 验证数据门挂起行为。
// 场景：关键点类别缺失进入 Blocked，时钟冻结、比对结果清零带原因；
// 恢复后原因清除、时钟继续。
func TestBlockedGateSuspendsSession(t *testing.T) {
	s := mustSession(t, poseOnlyGame(), poseMatchSettings())

	s = tick(s, 600)
	s = Reduce(s, matchedScores(s, 90))
	s = Reduce(s, model.Command{Type: model.CmdPoseMatchBlocked, Reason: "faceLandmarks missing"})

	if !s.Flags.Blocked || !s.Suspended() {
		t.Fatalf("expected blocked suspension")
	}
	if s.PoseMatch.Overall != 0 || s.PoseMatch.BlockReason != "faceLandmarks missing" {
		t.Fatalf("expected scores zeroed with reason, got %+v", s.PoseMatch)
	}

	s = tick(s, 1000)
	if s.Clock.Now != 600 {
		t.Fatalf("expected clock frozen while blocked, got %v", s.Clock.Now)
	}

	s = Reduce(s, model.Command{Type: model.CmdPoseMatchUnblocked})
	if s.Flags.Blocked || s.PoseMatch.BlockReason != "" {
		t.Fatalf("expected unblocked, got %+v", s.PoseMatch)
	}
	if !hasTelemetry(s, model.TelemetryBlocked) || !hasTelemetry(s, model.TelemetryUnblocked) {
		t.Fatalf("expected block telemetry pair, got %v", telemetryTypes(s))
	}
}

// TestConsumeEffectsDrainsOutbox 验证出站箱只在显式消费时清空。
// 场景：多条命令之间效果只增不减，CONSUME_EFFECTS 清空后再次消费仍为空。
func TestConsumeEffectsDrainsOutbox(t *testing.T) {
	s := mustSession(t, fullGame(), model.DefaultSettings())
	if len(s.Effects) == 0 {
		t.Fatalf("expected initial effects")
	}

	before := len(s.Effects)
	s = Reduce(s, model.NextCommand(model.SourceClick))
	if len(s.Effects) <= before {
		t.Fatalf("expected outbox to accumulate, before=%d after=%d", before, len(s.Effects))
	}

	s = Reduce(s, model.Command{Type: model.CmdConsumeEffects})
	if len(s.Effects) != 0 {
		t.Fatalf("expected outbox drained, got %d", len(s.Effects))
	}
	s = Reduce(s, model.Command{Type: model.CmdConsumeEffects})
	if len(s.Effects) != 0 {
		t.Fatalf("expected drain idempotent, got %d", len(s.Effects))
	}
}

// TestSetSettingEmitsTelemetry 验证设置合并与坏路径忽略。
// 场景：合法路径写入后上报 SETTING_CHANGED，未知路径静默 no-op。
func TestSetSettingEmitsTelemetry(t *testing.T) {
	s := mustSession(t, fullGame(), model.DefaultSettings())
	s = Reduce(s, model.Command{Type: model.CmdConsumeEffects})

	s = Reduce(s, model.Command{Type: model.CmdSetSetting, Path: "match.thresholdPct", Value: 85.0})
	if s.Settings.Match.ThresholdPct != 85 {
		t.Fatalf("expected threshold 85, got %v", s.Settings.Match.ThresholdPct)
	}
	if !hasTelemetry(s, model.TelemetrySettingChanged) {
		t.Fatalf("expected SETTING_CHANGED, got %v", telemetryTypes(s))
	}

	before := len(s.Effects)
	s = Reduce(s, model.Command{Type: model.CmdSetSetting, Path: "no.such.path", Value: true})
	if len(s.Effects) != before {
		t.Fatalf("expected unknown path to no-op")
	}
}

// TestToggleSettingsFlipsFlag 验证设置面板开关翻转。
func TestToggleSettingsFlipsFlag(t *testing.T) {
	s := mustSession(t, fullGame(), model.DefaultSettings())

	s = Reduce(s, model.Command{Type: model.CmdToggleSettings})
	if !s.Flags.ShowSettings {
		t.Fatalf("expected settings shown")
	}
	s = Reduce(s, model.Command{Type: model.CmdToggleSettings})
	if s.Flags.ShowSettings {
		t.Fatalf("expected settings hidden")
	}
}

// TestRestartLevelCarriesEffects 验证重开关卡不丢失未消费效果。
// 场景：积累若干效果后重开，新会话出站箱以旧效果开头，随后是
// LEVEL_RESTART，再往后是新会话自己的 SESSION_START。
func TestRestartLevelCarriesEffects(t *testing.T) {
	s := mustSession(t, fullGame(), model.DefaultSettings())
	s = Reduce(s, model.NextCommand(model.SourceClick))
	carried := len(s.Effects)

	next := Reduce(s, model.Command{Type: model.CmdRestartLevel})

	if next.NodeIndex != 0 || next.Clock.Now != 0 || next.Completed {
		t.Fatalf("expected fresh session after restart")
	}
	if next.PlayID != s.PlayID {
		t.Fatalf("expected play id preserved")
	}
	if len(next.Effects) <= carried {
		t.Fatalf("expected carried effects plus restart marker, got %d", len(next.Effects))
	}
	restartEvt := next.Effects[carried]
	if restartEvt.Event == nil || restartEvt.Event.Type != model.TelemetryLevelRestart {
		t.Fatalf("expected LEVEL_RESTART after carried effects, got %+v", restartEvt)
	}
	tail := next.Effects[carried+1:]
	if len(tail) == 0 || tail[0].Event == nil || tail[0].Event.Type != model.TelemetrySessionStart {
		t.Fatalf("expected new SESSION_START after restart marker")
	}
}

// TestTweenReplayAndSkip 验证 TWEEN 的重播与跳过。
// 场景：Reps.Tween=2，第一遍播完布置重播并上报 TWEEN_REPLAY，
// 第二遍播完以 TWEEN_FINISHED 退出；NEXT 随时以 TWEEN_SKIPPED 提前结束。
func TestTweenReplayAndSkip(t *testing.T) {
	settings := model.DefaultSettings()
	settings.States.PoseMatch = false
	s := mustSession(t, poseOnlyGame(), settings)
	if node := s.Node(); node == nil || node.Type != model.NodeTween {
		t.Fatalf("expected tween node, got %+v", s.Node())
	}

	// 两个姿势一段，默认段时长 1000ms，一遍 1000ms。
	s = tick(s, 1100)
	if s.TweenPlayIndex != 1 {
		t.Fatalf("expected replay index 1, got %d", s.TweenPlayIndex)
	}
	if !hasTelemetry(s, model.TelemetryTweenReplay) {
		t.Fatalf("expected TWEEN_REPLAY, got %v", telemetryTypes(s))
	}

	s = tick(s, 1100)
	if !s.Completed {
		t.Fatalf("expected completion after final replay (tween is the only node)")
	}

	// 跳过路径。
	s2 := mustSession(t, poseOnlyGame(), settings)
	s2 = Reduce(s2, model.NextCommand(model.SourceClick))
	if !s2.Completed {
		t.Fatalf("expected skip to end tween node")
	}
	if !hasTelemetry(s2, model.TelemetryStateExit) {
		t.Fatalf("expected STATE_EXIT on skip")
	}
}

// TestUnknownNodeTypeIsNoOp 验证未知节点类型降级为 no-op 控制器。
// 场景：手工注入一个未知类型节点，NEXT 与 TICK 都不应推进或崩溃。
func TestUnknownNodeTypeIsNoOp(t *testing.T) {
	s := mustSession(t, fullGame(), model.DefaultSettings())
	s.Nodes[0].Type = model.NodeType("hologram")

	s = Reduce(s, model.NextCommand(model.SourceClick))
	if s.NodeIndex != 0 {
		t.Fatalf("expected unknown node type to stay put, got index %d", s.NodeIndex)
	}
	s = tick(s, 5000)
	if s.NodeIndex != 0 {
		t.Fatalf("expected tick on unknown node to stay put, got index %d", s.NodeIndex)
	}
}
