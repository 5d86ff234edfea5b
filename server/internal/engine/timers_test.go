package engine

import (
	"testing"

	"pose-play/server/internal/model"
)

// TestScheduleReplacesSameTag 验证同标签定时器的唯一性。
// 场景：同一标签连续调度两次，只保留最后一次的到期时间。
func TestScheduleReplacesSameTag(t *testing.T) {
	s := &model.Session{}

	Schedule(s, model.TagAutoNext, model.TimerAutoNext, 100, "")
	Schedule(s, model.TagAutoNext, model.TimerAutoNext, 300, "")

	if len(s.Timers) != 1 {
		t.Fatalf("expected single timer per tag, got %d", len(s.Timers))
	}
	if s.Timers[0].At != 300 {
		t.Fatalf("expected latest schedule to win, got at=%v", s.Timers[0].At)
	}
}

// TestCancelByTagKeepsOthers 验证按标签取消不影响其他定时器。
func TestCancelByTagKeepsOthers(t *testing.T) {
	s := &model.Session{}
	Schedule(s, model.TagCursorDelay, model.TimerShowCursor, 100, "")
	Schedule(s, model.TagAutoNext, model.TimerAutoNext, 200, "")

	CancelByTag(s, model.TagCursorDelay)

	if len(s.Timers) != 1 || s.Timers[0].Tag != model.TagAutoNext {
		t.Fatalf("expected only auto-next to survive, got %+v", s.Timers)
	}
	if !hasTag(s, model.TagAutoNext) || hasTag(s, model.TagCursorDelay) {
		t.Fatalf("hasTag inconsistent with timer list")
	}
}

// TestRunDueFiresInScheduleOrder 验证同帧到期的 FIFO 平局规则。
// 场景：三个定时器同一帧到期，触发顺序必须等于调度顺序。
func TestRunDueFiresInScheduleOrder(t *testing.T) {
	s := &model.Session{}
	Schedule(s, "a", model.TimerShowCursor, 50, "")
	Schedule(s, "b", model.TimerShowCursor, 30, "")
	Schedule(s, "c", model.TimerShowCursor, 40, "")

	var fired []string
	RunDue(s, 100, func(_ *model.Session, tm model.Timer) {
		fired = append(fired, tm.Tag)
	})

	// 到期时间不同也按调度序触发，而不是按 At 排序。
	want := []string{"a", "b", "c"}
	for i := range want {
		if i >= len(fired) || fired[i] != want[i] {
			t.Fatalf("expected FIFO order %v, got %v", want, fired)
		}
	}
	if len(s.Timers) != 0 {
		t.Fatalf("expected due timers removed, got %d", len(s.Timers))
	}
}

// TestRunDueLeavesPendingTimers 验证未到期定时器原样保留。
func TestRunDueLeavesPendingTimers(t *testing.T) {
	s := &model.Session{}
	Schedule(s, "due", model.TimerShowCursor, 10, "")
	Schedule(s, "pending", model.TimerShowCursor, 500, "")

	fired := 0
	RunDue(s, 100, func(_ *model.Session, _ model.Timer) { fired++ })

	if fired != 1 {
		t.Fatalf("expected one timer fired, got %d", fired)
	}
	if len(s.Timers) != 1 || s.Timers[0].Tag != "pending" {
		t.Fatalf("expected pending timer kept, got %+v", s.Timers)
	}
}

// TestRunDueDefersTimersScheduledDuringApply 验证触发期间新调度的定时器
// 要到下一次轮询才会被检查，即使它的到期时间已经过去。
func TestRunDueDefersTimersScheduledDuringApply(t *testing.T) {
	s := &model.Session{}
	Schedule(s, "first", model.TimerShowCursor, 10, "")

	fired := 0
	RunDue(s, 100, func(ss *model.Session, _ model.Timer) {
		fired++
		Schedule(ss, "chained", model.TimerShowCursor, 20, "")
	})

	if fired != 1 {
		t.Fatalf("expected only the original timer fired, got %d", fired)
	}
	if !hasTag(s, "chained") {
		t.Fatalf("expected chained timer waiting for next poll")
	}
}
