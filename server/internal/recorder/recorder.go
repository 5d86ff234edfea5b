// Package recorder 实现姿势帧采样录制。录制开关由状态机的
// POSE_RECORDING_HINT 效果驱动，采样频率由设置的 LogFPS 决定，
// 与相机帧率和 tick 频率解耦。
package recorder

import (
	"log"
	"sync"
	"time"

	"pose-play/server/internal/model"
)

// RecordedFrame 是一条带时间戳与节点上下文的采样帧。
type RecordedFrame struct {
	At        time.Time           `json:"at"`
	NodeIndex int                 `json:"node_index"`
	StateType model.NodeType      `json:"state_type"`
	Frame     model.LandmarkFrame `json:"frame"`
}

// Recorder 按固定频率采样实时帧。并发安全：网关的帧提交与
// Runner 的开关切换来自不同 goroutine。
type Recorder struct {
	mu        sync.Mutex
	enabled   bool
	stateType model.NodeType
	nodeIndex int
	interval  time.Duration
	lastAt    time.Time
	frames    []RecordedFrame
	logger    *log.Logger
}

func New(fps int, logger *log.Logger) *Recorder {
	if fps <= 0 {
		fps = 5
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{
		interval: time.Second / time.Duration(fps),
		logger:   logger,
	}
}

// SetEnabled 切换录制开关，同时记下当前节点上下文。
// 开关切换不清空已有样本，整个 play 的样本累积在一起。
func (r *Recorder) SetEnabled(enabled bool, stateType model.NodeType, nodeIndex int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.enabled == enabled && r.stateType == stateType {
		return
	}
	r.enabled = enabled
	r.stateType = stateType
	r.nodeIndex = nodeIndex
	r.logger.Printf("[Recorder] 录制开关: enabled=%v state=%s node=%d", enabled, stateType, nodeIndex)
}

// Offer 提交一帧候选。未开启录制或距上次采样不足一个周期时丢弃。
func (r *Recorder) Offer(frame *model.LandmarkFrame, now time.Time) bool {
	if frame == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		return false
	}
	if !r.lastAt.IsZero() && now.Sub(r.lastAt) < r.interval {
		return false
	}
	r.lastAt = now
	r.frames = append(r.frames, RecordedFrame{
		At:        now,
		NodeIndex: r.nodeIndex,
		StateType: r.stateType,
		Frame:     *frame,
	})
	return true
}

// Frames 返回已采样帧的副本。
func (r *Recorder) Frames() []RecordedFrame {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RecordedFrame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Reset 清空样本，重开关卡时调用。
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames = nil
	r.lastAt = time.Time{}
}
