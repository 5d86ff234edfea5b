package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pose-play/server/internal/engine"
	"pose-play/server/internal/model"
	"pose-play/server/internal/recorder"
	"pose-play/server/internal/session"
	"pose-play/server/internal/telemetry"
)

var (
	ErrPlayNotFound      = errors.New("play not found")
	ErrUnknownGame       = errors.New("unknown game")
	ErrUnknownLevel      = errors.New("unknown level")
	ErrCommandNotAllowed = errors.New("command not allowed from client")
	ErrNotAwaitingAnswer = errors.New("current node does not accept answers")
)

// GameLibrary 提供授权内容。实现方负责加载与热更新，
// 这里只消费不可变的游戏树。
type GameLibrary interface {
	Game(id string) (*model.Game, bool)
	Games() []*model.Game
}

// 允许从客户端进入的命令集合。TICK/评分/数据门/效果消费是内部命令，
// 放进来会破坏时钟与出站箱的所有权。
var clientCommands = map[model.CommandType]bool{
	model.CmdNext:           true,
	model.CmdPause:          true,
	model.CmdResume:         true,
	model.CmdSetSetting:     true,
	model.CmdToggleSettings: true,
	model.CmdRestartLevel:   true,
}

// Orchestrator 是 play 生命周期的编排者：创建会话、持有每个 play 的
// Runner、把外部输入（命令/答案/帧）路由到对应的串行队列。
//
// 职责与契约：
// - append-first：所有状态变化先由归约器产出遥测效果，Runner 写入
//   遥测流后才清空出站箱，保证可回放与幂等。
// - 决策集中：门控、评分节流、录制开关都在 Runner/引擎内裁决，
//   网关与前端只做传输。
type Orchestrator struct {
	library   GameLibrary
	sessions  session.Store
	telemetry telemetry.Store
	logger    *log.Logger

	tickInterval time.Duration

	mu      sync.Mutex
	runners map[string]*Runner
}

func New(library GameLibrary, sessions session.Store, tel telemetry.Store,
	tickInterval time.Duration, logger *log.Logger) *Orchestrator {

	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		library:      library,
		sessions:     sessions,
		telemetry:    tel,
		logger:       logger,
		tickInterval: tickInterval,
		runners:      make(map[string]*Runner),
	}
}

// CreatePlayRequest 是开始一次关卡游玩的请求。
// LevelID 为空取游戏的第一关；Settings 是最后一层覆盖。
type CreatePlayRequest struct {
	GameID   string               `json:"game_id"`
	LevelID  string               `json:"level_id,omitempty"`
	Settings *model.SettingsPatch `json:"settings,omitempty"`
}

// CreatePlay 创建会话并启动 Runner。
// 设置合并顺序：引擎默认 → 关卡补丁 → 请求补丁，后者覆盖前者。
func (o *Orchestrator) CreatePlay(ctx context.Context, req CreatePlayRequest) (*model.Session, error) {
	game, ok := o.library.Game(req.GameID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, req.GameID)
	}

	levelIndex := 0
	if req.LevelID != "" {
		idx, found := game.FindLevel(req.LevelID)
		if !found {
			return nil, fmt.Errorf("%w: %s/%s", ErrUnknownLevel, req.GameID, req.LevelID)
		}
		levelIndex = idx
	}
	if len(game.Levels) == 0 {
		return nil, fmt.Errorf("%w: game %s has no levels", ErrUnknownLevel, req.GameID)
	}

	settings := model.DefaultSettings().
		Merge(game.Levels[levelIndex].Settings).
		Merge(req.Settings)

	s, err := engine.NewSession("", game, levelIndex, settings)
	if err != nil {
		return nil, err
	}

	rec := recorder.New(settings.LogFPS, o.logger)
	runner := NewRunner(s, o.sessions, o.telemetry, rec, o.tickInterval, o.logger)

	o.mu.Lock()
	o.runners[s.PlayID] = runner
	o.mu.Unlock()

	o.logger.Printf("[Orchestrator] 🎮 新游玩: play=%s game=%s level=%s", s.PlayID, s.GameID, s.LevelID)
	return runner.Snapshot(), nil
}

func (o *Orchestrator) runner(playID string) (*Runner, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.runners[playID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlayNotFound, playID)
	}
	return r, nil
}

// Get 返回某个 play 的最新会话快照。
func (o *Orchestrator) Get(playID string) (*model.Session, error) {
	r, err := o.runner(playID)
	if err != nil {
		return nil, err
	}
	return r.Snapshot(), nil
}

// Dispatch 同步派发一条客户端命令并返回处理后的快照。
// 内部命令（TICK/评分/门控/消费）被拒绝。
func (o *Orchestrator) Dispatch(playID string, cmd model.Command) (*model.Session, error) {
	if !clientCommands[cmd.Type] {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotAllowed, cmd.Type)
	}
	r, err := o.runner(playID)
	if err != nil {
		return nil, err
	}
	return r.Dispatch(cmd)
}

// AnswerRequest 是 INTUITION/INSIGHT 节点的作答请求。
// Answer 对判断题是 "true"/"false"，对选择题是选项 id。
type AnswerRequest struct {
	Answer string `json:"answer"`
}

// SubmitAnswer 记录作答并推进节点。
// 判分是纯注记：答错不阻塞推进，对错随 ANSWER_SUBMITTED 事实入流。
func (o *Orchestrator) SubmitAnswer(ctx context.Context, playID string, req AnswerRequest) (*model.Session, error) {
	r, err := o.runner(playID)
	if err != nil {
		return nil, err
	}

	s := r.Snapshot()
	node := s.Node()
	if node == nil || (node.Type != model.NodeIntuition && node.Type != model.NodeInsight) {
		return nil, ErrNotAwaitingAnswer
	}

	correct := gradeAnswer(node, req.Answer)
	evt := &model.TelemetryEvent{
		EventID:    uuid.NewString(),
		Type:       model.TelemetryAnswerSubmitted,
		At:         s.Clock.Now,
		NodeIndex:  s.NodeIndex,
		StateType:  node.Type,
		QuestionID: node.Question,
		Answer:     req.Answer,
		Correct:    correct,
	}
	if _, err := o.telemetry.Append(ctx, playID, evt); err != nil {
		return nil, err
	}

	return r.Dispatch(model.NextCommand(model.SourceClick))
}

// gradeAnswer 判分。无法判定（内容缺基准）返回 nil。
func gradeAnswer(node *model.StateNode, answer string) *bool {
	switch node.Type {
	case model.NodeIntuition:
		if node.TrueFalseAnswer == nil {
			return nil
		}
		got := strings.EqualFold(answer, "true")
		correct := got == *node.TrueFalseAnswer
		return &correct
	case model.NodeInsight:
		if node.CorrectID == "" {
			return nil
		}
		correct := answer == node.CorrectID
		return &correct
	default:
		return nil
	}
}

// SubmitFrame 把实时关键点帧交给对应 Runner。
func (o *Orchestrator) SubmitFrame(playID string, frame *model.LandmarkFrame) error {
	r, err := o.runner(playID)
	if err != nil {
		return err
	}
	r.SubmitFrame(frame)
	return nil
}

// Subscribe 订阅某个 play 的快照更新。
func (o *Orchestrator) Subscribe(playID string) (<-chan *model.Session, func(), error) {
	r, err := o.runner(playID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := r.Subscribe()
	return ch, cancel, nil
}

// Telemetry 返回某个 play 的全量遥测流。
func (o *Orchestrator) Telemetry(ctx context.Context, playID string) ([]model.TelemetryEvent, error) {
	if _, err := o.runner(playID); err != nil {
		return nil, err
	}
	return o.telemetry.List(ctx, playID)
}

// RecordedFrames 返回录制器采样的姿势帧。
func (o *Orchestrator) RecordedFrames(playID string) ([]recorder.RecordedFrame, error) {
	r, err := o.runner(playID)
	if err != nil {
		return nil, err
	}
	return r.Recorder().Frames(), nil
}

// ClosePlay 停止 Runner 并清理会话。遥测流保留，供事后分析。
func (o *Orchestrator) ClosePlay(ctx context.Context, playID string) error {
	o.mu.Lock()
	r, ok := o.runners[playID]
	delete(o.runners, playID)
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayNotFound, playID)
	}

	r.Stop()
	return o.sessions.Delete(ctx, playID)
}

// Shutdown 停止全部 Runner。
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	runners := make([]*Runner, 0, len(o.runners))
	for _, r := range o.runners {
		runners = append(runners, r)
	}
	o.runners = make(map[string]*Runner)
	o.mu.Unlock()

	for _, r := range runners {
		r.Stop()
	}
	o.logger.Printf("[Orchestrator] 已停止 %d 个游玩", len(runners))
}
