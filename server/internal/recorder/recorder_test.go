package recorder

import (
	"testing"
	"time"

	"pose-play/server/internal/model"
)

func testFrame() *model.LandmarkFrame {
	return &model.LandmarkFrame{
		PoseLandmarks: []model.LandmarkPoint{{X: 0.5, Y: 0.5}},
	}
}

// 验证未开启录制时帧被丢弃，开启后按采样周期收帧。
func TestRecorderSamplesAtInterval(t *testing.T) {
	r := New(10, nil) // 100ms 周期
	base := time.Now()

	if r.Offer(testFrame(), base) {
		t.Fatal("expected frame dropped while disabled")
	}

	r.SetEnabled(true, model.NodePoseMatch, 2)

	if !r.Offer(testFrame(), base) {
		t.Fatal("expected first frame accepted")
	}
	if r.Offer(testFrame(), base.Add(50*time.Millisecond)) {
		t.Fatal("expected frame inside sample interval dropped")
	}
	if !r.Offer(testFrame(), base.Add(120*time.Millisecond)) {
		t.Fatal("expected frame past sample interval accepted")
	}

	frames := r.Frames()
	if len(frames) != 2 {
		t.Fatalf("expected 2 recorded frames, got %d", len(frames))
	}
	if frames[0].NodeIndex != 2 || frames[0].StateType != model.NodePoseMatch {
		t.Fatalf("unexpected frame context: %+v", frames[0])
	}
}

// 验证开关切换保留已有样本，Reset 清空样本与采样时钟。
func TestRecorderToggleAndReset(t *testing.T) {
	r := New(10, nil)
	base := time.Now()

	r.SetEnabled(true, model.NodeTween, 0)
	r.Offer(testFrame(), base)

	r.SetEnabled(false, model.NodeTween, 0)
	if r.Offer(testFrame(), base.Add(time.Second)) {
		t.Fatal("expected frame dropped after disable")
	}
	if len(r.Frames()) != 1 {
		t.Fatal("expected disable to keep recorded frames")
	}

	r.Reset()
	if len(r.Frames()) != 0 {
		t.Fatal("expected reset to clear frames")
	}

	r.SetEnabled(true, model.NodeTween, 0)
	if !r.Offer(testFrame(), base.Add(time.Second)) {
		t.Fatal("expected sampling clock reset to accept the next frame")
	}
}

// 验证 Frames 返回副本，外部修改不影响内部状态。
func TestRecorderFramesReturnsCopy(t *testing.T) {
	r := New(10, nil)
	r.SetEnabled(true, model.NodePoseMatch, 0)
	r.Offer(testFrame(), time.Now())

	frames := r.Frames()
	frames[0].NodeIndex = 99

	if r.Frames()[0].NodeIndex != 0 {
		t.Fatal("expected internal frames unchanged")
	}
}
