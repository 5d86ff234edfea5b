package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"pose-play/server/internal/model"
	"pose-play/server/internal/session"
	"pose-play/server/internal/telemetry"
)

type stubLibrary struct {
	games map[string]*model.Game
}

func (l *stubLibrary) Game(id string) (*model.Game, bool) {
	g, ok := l.games[id]
	return g, ok
}

func (l *stubLibrary) Games() []*model.Game {
	out := make([]*model.Game, 0, len(l.games))
	for _, g := range l.games {
		out = append(out, g)
	}
	return out
}

func testGame() *model.Game {
	yes := true
	return &model.Game{
		ID: "g1",
		Levels: []model.Level{{
			ID:    "l1",
			Intro: []model.DialogueLine{{Text: "开始"}},
			Intuition: &model.IntuitionContent{
				Question: "重心要放低吗？",
				Answer:   &yes,
			},
			Insight: &model.InsightContent{
				Question:  "哪个更重要？",
				Options:   []model.InsightOption{{ID: "a", Label: "速度"}, {ID: "b", Label: "稳定"}},
				CorrectID: "b",
			},
			Poses: map[string]model.PoseEntry{
				"pose_1": {},
				"pose_2": {},
			},
		}},
	}
}

// newTestOrchestrator 用长 tick 周期创建编排器，测试里手动驱动命令，
// 不依赖后台 tick 泵。
func newTestOrchestrator() (*Orchestrator, *telemetry.InMemoryStore) {
	tel := telemetry.NewInMemoryStore()
	o := New(
		&stubLibrary{games: map[string]*model.Game{"g1": testGame()}},
		session.NewInMemoryStore(),
		tel,
		time.Hour,
		nil,
	)
	return o, tel
}

// TestCreatePlayDrainsInitialEffects 验证创建游玩即成流。
// 场景：CreatePlay 返回的快照出站箱已清空，SESSION_START 与
// STATE_ENTER 已写入遥测流。
func TestCreatePlayDrainsInitialEffects(t *testing.T) {
	o, tel := newTestOrchestrator()
	defer o.Shutdown()

	s, err := o.CreatePlay(context.Background(), CreatePlayRequest{GameID: "g1"})
	if err != nil {
		t.Fatalf("create play failed: %v", err)
	}
	if len(s.Effects) != 0 {
		t.Fatalf("expected initial effects drained, got %d", len(s.Effects))
	}

	events, _ := tel.List(context.Background(), s.PlayID)
	if len(events) < 2 {
		t.Fatalf("expected telemetry stream, got %d events", len(events))
	}
	if events[0].Type != model.TelemetrySessionStart {
		t.Fatalf("expected SESSION_START first, got %s", events[0].Type)
	}
}

// TestCreatePlayUnknownContent 验证未知游戏/关卡返回哨兵错误。
func TestCreatePlayUnknownContent(t *testing.T) {
	o, _ := newTestOrchestrator()
	defer o.Shutdown()

	if _, err := o.CreatePlay(context.Background(), CreatePlayRequest{GameID: "nope"}); !errors.Is(err, ErrUnknownGame) {
		t.Fatalf("expected ErrUnknownGame, got %v", err)
	}
	if _, err := o.CreatePlay(context.Background(), CreatePlayRequest{GameID: "g1", LevelID: "nope"}); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("expected ErrUnknownLevel, got %v", err)
	}
}

// TestDispatchNextAdvancesAndPersists 验证客户端命令的同步派发。
// 场景：INTRO 单句台词，NEXT 后返回的快照已进入下一节点，
// 且相应遥测已落流。
func TestDispatchNextAdvancesAndPersists(t *testing.T) {
	o, tel := newTestOrchestrator()
	defer o.Shutdown()

	s, _ := o.CreatePlay(context.Background(), CreatePlayRequest{GameID: "g1"})

	next, err := o.Dispatch(s.PlayID, model.NextCommand(model.SourceClick))
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if node := next.Node(); node == nil || node.Type != model.NodeIntuition {
		t.Fatalf("expected intuition after intro, got %+v", next.Node())
	}

	events, _ := tel.List(context.Background(), s.PlayID)
	found := false
	for _, evt := range events {
		if evt.Type == model.TelemetryDialogueEnd {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected DIALOGUE_END in telemetry stream")
	}
}

// TestDispatchRejectsInternalCommands 验证内部命令不可从客户端进入。
func TestDispatchRejectsInternalCommands(t *testing.T) {
	o, _ := newTestOrchestrator()
	defer o.Shutdown()

	s, _ := o.CreatePlay(context.Background(), CreatePlayRequest{GameID: "g1"})

	for _, typ := range []model.CommandType{
		model.CmdTick, model.CmdConsumeEffects,
		model.CmdPoseMatchScores, model.CmdPoseMatchBlocked,
	} {
		if _, err := o.Dispatch(s.PlayID, model.Command{Type: typ}); !errors.Is(err, ErrCommandNotAllowed) {
			t.Fatalf("expected %s rejected, got %v", typ, err)
		}
	}
}

// TestSubmitAnswerGradesAndAdvances 验证作答记录与推进。
// 场景：判断题答对，ANSWER_SUBMITTED 带 correct=true 入流，节点推进；
// 答错同样推进（判分是注记不是门槛）。
func TestSubmitAnswerGradesAndAdvances(t *testing.T) {
	o, tel := newTestOrchestrator()
	defer o.Shutdown()

	ctx := context.Background()
	s, _ := o.CreatePlay(ctx, CreatePlayRequest{GameID: "g1"})
	s, _ = o.Dispatch(s.PlayID, model.NextCommand(model.SourceClick)) // intro -> intuition

	next, err := o.SubmitAnswer(ctx, s.PlayID, AnswerRequest{Answer: "true"})
	if err != nil {
		t.Fatalf("submit answer failed: %v", err)
	}
	if node := next.Node(); node == nil || node.Type == model.NodeIntuition {
		t.Fatalf("expected advance past intuition, got %+v", next.Node())
	}

	events, _ := tel.List(ctx, s.PlayID)
	var answered *model.TelemetryEvent
	for i := range events {
		if events[i].Type == model.TelemetryAnswerSubmitted {
			answered = &events[i]
		}
	}
	if answered == nil {
		t.Fatalf("expected ANSWER_SUBMITTED in stream")
	}
	if answered.Correct == nil || !*answered.Correct {
		t.Fatalf("expected correct=true, got %+v", answered.Correct)
	}
}

// TestSubmitAnswerOutsideQuestionNode 验证非问答节点拒绝作答。
func TestSubmitAnswerOutsideQuestionNode(t *testing.T) {
	o, _ := newTestOrchestrator()
	defer o.Shutdown()

	s, _ := o.CreatePlay(context.Background(), CreatePlayRequest{GameID: "g1"})
	// 当前在 INTRO。
	if _, err := o.SubmitAnswer(context.Background(), s.PlayID, AnswerRequest{Answer: "true"}); !errors.Is(err, ErrNotAwaitingAnswer) {
		t.Fatalf("expected ErrNotAwaitingAnswer, got %v", err)
	}
}

// TestLevelSettingsPatchApplied 验证关卡级设置补丁参与合并。
// 场景：关卡补丁关闭 tween，构建出的节点序列不含 TWEEN。
func TestLevelSettingsPatchApplied(t *testing.T) {
	game := testGame()
	off := false
	game.Levels[0].Settings = &model.SettingsPatch{
		States: &struct {
			Intro     *bool `json:"intro"`
			Intuition *bool `json:"intuition"`
			Tween     *bool `json:"tween"`
			PoseMatch *bool `json:"pose_match"`
			Insight   *bool `json:"insight"`
			Outro     *bool `json:"outro"`
		}{Tween: &off},
	}

	o := New(
		&stubLibrary{games: map[string]*model.Game{"g1": game}},
		session.NewInMemoryStore(),
		telemetry.NewInMemoryStore(),
		time.Hour,
		nil,
	)
	defer o.Shutdown()

	s, err := o.CreatePlay(context.Background(), CreatePlayRequest{GameID: "g1"})
	if err != nil {
		t.Fatalf("create play failed: %v", err)
	}
	for _, n := range s.Nodes {
		if n.Type == model.NodeTween {
			t.Fatalf("expected tween excluded by level settings patch")
		}
	}
}

// TestClosePlayRemovesRunner 验证关闭后 play 不可再访问，遥测保留。
func TestClosePlayRemovesRunner(t *testing.T) {
	o, tel := newTestOrchestrator()
	defer o.Shutdown()

	ctx := context.Background()
	s, _ := o.CreatePlay(ctx, CreatePlayRequest{GameID: "g1"})

	if err := o.ClosePlay(ctx, s.PlayID); err != nil {
		t.Fatalf("close play failed: %v", err)
	}
	if _, err := o.Get(s.PlayID); !errors.Is(err, ErrPlayNotFound) {
		t.Fatalf("expected ErrPlayNotFound after close, got %v", err)
	}
	if events, _ := tel.List(ctx, s.PlayID); len(events) == 0 {
		t.Fatalf("expected telemetry retained after close")
	}
}

// TestSubmitFrameReachesRunner 验证帧提交路由与未知 play 错误。
func TestSubmitFrameReachesRunner(t *testing.T) {
	o, _ := newTestOrchestrator()
	defer o.Shutdown()

	s, _ := o.CreatePlay(context.Background(), CreatePlayRequest{GameID: "g1"})
	frame := &model.LandmarkFrame{PoseLandmarks: []model.LandmarkPoint{{X: 0.1, Y: 0.2}}}

	if err := o.SubmitFrame(s.PlayID, frame); err != nil {
		t.Fatalf("submit frame failed: %v", err)
	}
	if err := o.SubmitFrame("missing", frame); !errors.Is(err, ErrPlayNotFound) {
		t.Fatalf("expected ErrPlayNotFound, got %v", err)
	}
}
