package engine

import (
	"github.com/google/uuid"

	"pose-play/server/internal/model"
)

// 定时器子系统：挂在逻辑时钟上的延迟动作列表。
// 不使用 wall-clock 回调——每个 TICK 用 Clock.Now 轮询一次，
// 暂停冻结时钟即冻结全部定时器，无需逐个挂起。

// Schedule 追加一个定时器。同标签的旧定时器先被取消，
// 保证任一时刻每个标签至多一个定时器（不会重复触发）。
func Schedule(s *model.Session, tag string, kind model.TimerKind, at float64, reason string) {
	CancelByTag(s, tag)
	s.Timers = append(s.Timers, model.Timer{
		ID:     uuid.NewString(),
		Tag:    tag,
		Kind:   kind,
		At:     at,
		Reason: reason,
	})
}

// CancelByTag 移除全部同标签定时器。
func CancelByTag(s *model.Session, tag string) {
	if len(s.Timers) == 0 {
		return
	}
	kept := s.Timers[:0]
	for _, t := range s.Timers {
		if t.Tag != tag {
			kept = append(kept, t)
		}
	}
	s.Timers = kept
}

// RunDue 把定时器按 at <= now 分成到期与未到期两组，按数组序
// （即调度序，FIFO）逐个执行到期动作。同一 tick 内到期的定时器
// 以调度顺序触发，这是为录制/回放确定性而特意固定的平局规则。
//
// apply 过程中新调度的定时器要到下一个 TICK 才会被轮询。
func RunDue(s *model.Session, now float64, apply func(*model.Session, model.Timer)) {
	var due, pending []model.Timer
	for _, t := range s.Timers {
		if t.At <= now {
			due = append(due, t)
		} else {
			pending = append(pending, t)
		}
	}
	if len(due) == 0 {
		return
	}

	s.Timers = pending
	for _, t := range due {
		apply(s, t)
	}
}

func hasTag(s *model.Session, tag string) bool {
	for _, t := range s.Timers {
		if t.Tag == tag {
			return true
		}
	}
	return false
}
