package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"pose-play/server/internal/engine"
	"pose-play/server/internal/match"
	"pose-play/server/internal/model"
	"pose-play/server/internal/recorder"
	"pose-play/server/internal/session"
	"pose-play/server/internal/telemetry"
)

// Runner 驱动单个 play 的运行时循环。
//
// 职责与契约：
// - 唯一的会话写入方：所有命令经 CommandQueue 串行进入 engine.Reduce。
// - tick 泵：按固定频率把 wall-time 增量翻译成 TICK 命令。
// - 比对泵：按 Match.IntervalMS 节流评分，结果以 POSE_MATCH_SCORES 回流。
// - 数据门：设置要求的关键点类别缺失时派发 POSE_MATCH_BLOCKED。
// - 效果消费：drain 出站箱（遥测入库、录制开关、完成通知）后回发
//   CONSUME_EFFECTS，失败时保留效果等下一次命令重试（EventID 幂等）。
type Runner struct {
	playID    string
	queue     *CommandQueue
	sessions  session.Store
	telemetry telemetry.Store
	recorder  *recorder.Recorder
	logger    *log.Logger

	tickInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	session *model.Session

	frameMu   sync.Mutex
	liveFrame *model.LandmarkFrame

	scoreMu     sync.Mutex
	lastScoreAt time.Time

	subMu sync.Mutex
	subs  map[chan *model.Session]struct{}
}

// NewRunner 创建并启动一个 play 的运行时循环。
// 创建时同步 drain 初始效果（SESSION_START 等），保证首个快照落库前
// 遥测已经成流。
func NewRunner(s *model.Session, sessions session.Store, tel telemetry.Store,
	rec *recorder.Recorder, tickInterval time.Duration, logger *log.Logger) *Runner {

	if logger == nil {
		logger = log.Default()
	}
	if tickInterval <= 0 {
		tickInterval = 33 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		playID:       s.PlayID,
		sessions:     sessions,
		telemetry:    tel,
		recorder:     rec,
		logger:       logger,
		tickInterval: tickInterval,
		ctx:          ctx,
		cancel:       cancel,
		subs:         make(map[chan *model.Session]struct{}),
	}
	r.queue = NewCommandQueue(s.PlayID, r.handle, logger)

	initial := r.flush(ctx, s)
	r.session = initial
	if err := sessions.Save(ctx, initial); err != nil {
		logger.Printf("[Runner] ❌ 初始快照落库失败: play=%s error=%v", s.PlayID, err)
	}

	r.wg.Add(1)
	go r.tickLoop()

	logger.Printf("[Runner] ▶️  启动: play=%s game=%s level=%s nodes=%d",
		s.PlayID, s.GameID, s.LevelID, len(s.Nodes))
	return r
}

// handle 是命令队列的处理器：归约、drain 效果、落库、广播。
func (r *Runner) handle(ctx context.Context, cmd model.Command) error {
	cur := r.Snapshot()
	next := engine.Reduce(cur, cmd)

	if cmd.Type == model.CmdRestartLevel {
		r.recorder.Reset()
	}

	next = r.flush(ctx, next)

	r.mu.Lock()
	r.session = next
	r.mu.Unlock()

	if err := r.sessions.Save(ctx, next); err != nil {
		return err
	}
	r.notify(next)
	return nil
}

// flush 消费出站箱。任何一条遥测写入失败就中止 drain 并保留全部效果，
// 下一次命令重试时由 EventID 幂等去重。
func (r *Runner) flush(ctx context.Context, s *model.Session) *model.Session {
	if len(s.Effects) == 0 {
		return s
	}

	for _, eff := range s.Effects {
		switch eff.Type {
		case model.EffectTelemetry:
			if eff.Event == nil {
				continue
			}
			if _, err := r.telemetry.Append(ctx, s.PlayID, eff.Event); err != nil {
				r.logger.Printf("[Runner] ❌ 遥测写入失败，保留出站箱: play=%s error=%v", s.PlayID, err)
				return s
			}
		case model.EffectRecordingHint:
			r.recorder.SetEnabled(eff.Enabled, eff.StateType, eff.NodeIndex)
		case model.EffectOnComplete:
			r.logger.Printf("[Runner] 🏁 关卡完成: play=%s level=%s", s.PlayID, s.LevelID)
		}
	}

	return engine.Reduce(s, model.Command{Type: model.CmdConsumeEffects})
}

// tickLoop 是 tick 泵：每个周期先做比对/数据门评估，再派发 TICK。
// dt 用真实 wall-time 增量而不是名义周期，调度抖动不会累积成时钟漂移。
func (r *Runner) tickLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-r.ctx.Done():
			return
		case now := <-ticker.C:
			dt := float64(now.Sub(last).Microseconds()) / 1000.0
			last = now

			s := r.Snapshot()
			if s == nil {
				continue
			}
			r.evaluatePose(s, now)
			_ = r.queue.Enqueue(model.TickCommand(float64(now.UnixMilli()), dt, s.Clock.Elapsed+dt))
		}
	}
}

// evaluatePose 在 POSE_MATCH 节点上做数据门检查与节流评分。
func (r *Runner) evaluatePose(s *model.Session, now time.Time) {
	node := s.Node()
	if s.Completed || node == nil || node.Type != model.NodePoseMatch || s.Flags.Paused {
		return
	}

	live := r.latestFrame()
	level := &s.Game.Levels[s.LevelIndex]
	target := level.TargetFrame(s.PoseMatch.TargetPoseID)
	if target == nil {
		return
	}

	if reason := gateReason(s.Settings.Include, live, target); reason != "" {
		if !s.Flags.Blocked || s.PoseMatch.BlockReason != reason {
			_ = r.queue.Enqueue(model.Command{Type: model.CmdPoseMatchBlocked, Reason: reason})
		}
		return
	}
	if s.Flags.Blocked {
		_ = r.queue.Enqueue(model.Command{Type: model.CmdPoseMatchUnblocked})
		return
	}

	interval := time.Duration(s.Settings.Match.IntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	r.scoreMu.Lock()
	throttled := now.Sub(r.lastScoreAt) < interval
	if !throttled {
		r.lastScoreAt = now
	}
	r.scoreMu.Unlock()
	if throttled {
		return
	}

	res := match.ComputePoseMatch(match.Input{
		Live:         live,
		Target:       target,
		FeatureIDs:   match.IDsForInclude(s.Settings.Include),
		ThresholdPct: s.PoseMatch.ThresholdPct,
	})
	_ = r.queue.Enqueue(model.Command{
		Type: model.CmdPoseMatchScores,
		Scores: &model.PoseMatchState{
			Overall:      res.Overall,
			PerSegment:   res.PerSegment,
			PerFeature:   res.PerFeature,
			ThresholdPct: res.ThresholdPct,
			Matched:      res.Matched,
			TargetPoseID: s.PoseMatch.TargetPoseID,
			StepIndex:    s.StepIndex,
		},
	})
}

// gateReason 检查设置启用的关键点类别在两侧的可用性。
// 目标帧没授权某类别时不要求实时帧提供——不可观测的特征本来就会被过滤。
func gateReason(inc model.IncludeSettings, live, target *model.LandmarkFrame) string {
	for _, key := range match.EnabledKeys(inc) {
		if !target.Has(key) {
			continue
		}
		if !live.Has(key) {
			return key + " missing"
		}
	}
	return ""
}

// SubmitFrame 接收实时关键点帧：更新最近帧，并交给录制器按频率采样。
func (r *Runner) SubmitFrame(frame *model.LandmarkFrame) {
	if frame == nil {
		return
	}
	r.frameMu.Lock()
	r.liveFrame = frame
	r.frameMu.Unlock()

	r.recorder.Offer(frame, time.Now())
}

func (r *Runner) latestFrame() *model.LandmarkFrame {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	return r.liveFrame
}

// Dispatch 同步派发一条命令并返回处理后的快照。
func (r *Runner) Dispatch(cmd model.Command) (*model.Session, error) {
	if err := r.queue.EnqueueSync(cmd, 0); err != nil {
		return nil, err
	}
	return r.Snapshot(), nil
}

// Snapshot 返回最近一次归约产出的完整会话快照。
func (r *Runner) Snapshot() *model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session
}

// Recorder 暴露录制器，供帧导出接口读取样本。
func (r *Runner) Recorder() *recorder.Recorder {
	return r.recorder
}

// Subscribe 注册一个快照订阅通道。通道满时丢弃本次推送——
// 订阅者总能从下一次推送拿到更新的完整快照。
func (r *Runner) Subscribe() (<-chan *model.Session, func()) {
	ch := make(chan *model.Session, 8)
	r.subMu.Lock()
	r.subs[ch] = struct{}{}
	r.subMu.Unlock()

	cancel := func() {
		r.subMu.Lock()
		delete(r.subs, ch)
		r.subMu.Unlock()
	}
	return ch, cancel
}

func (r *Runner) notify(s *model.Session) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Done 在 Runner 停止后关闭。
func (r *Runner) Done() <-chan struct{} {
	return r.ctx.Done()
}

// Stop 停止 tick 泵与命令队列。已入队命令会被丢弃而不是排干，
// 停止意味着这个 play 的所有后续状态都不再重要。
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
	_ = r.queue.Close()
	r.logger.Printf("[Runner] ⏹️  停止: play=%s", r.playID)
}
