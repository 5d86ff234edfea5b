package telemetry

import (
	"context"
	"sync"

	"pose-play/server/internal/model"
)

// InMemoryStore 是一个基于内存的遥测流存储实现。
type InMemoryStore struct {
	mu       sync.RWMutex
	events   map[string][]model.TelemetryEvent
	seq      map[string]int64
	eventIDs map[string]map[string]int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events:   make(map[string][]model.TelemetryEvent),
		seq:      make(map[string]int64),
		eventIDs: make(map[string]map[string]int64),
	}
}

// Append 追加事件到遥测流，并为该 play 分配单调递增 seq。
// 副作用：会修改内存状态；相同 EventID 会直接返回已分配的 seq（幂等，
// 出站箱的效果可能在 drain 重试时重复投递）。
func (s *InMemoryStore) Append(_ context.Context, playID string, evt *model.TelemetryEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.EventID != "" {
		if seen, ok := s.eventIDs[playID]; ok {
			if seq, exists := seen[evt.EventID]; exists {
				return seq, nil
			}
		}
	}

	s.seq[playID]++
	seq := s.seq[playID]

	eventCopy := *evt
	eventCopy.Seq = seq
	eventCopy.PlayID = playID
	s.events[playID] = append(s.events[playID], eventCopy)

	if evt.EventID != "" {
		if s.eventIDs[playID] == nil {
			s.eventIDs[playID] = make(map[string]int64)
		}
		s.eventIDs[playID][evt.EventID] = seq
	}

	return seq, nil
}

// List 返回某个 play 的全部遥测事件（按 seq 顺序）。
// 兼容性：返回切片副本，避免调用方修改内部数据。
func (s *InMemoryStore) List(_ context.Context, playID string) ([]model.TelemetryEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.events[playID]
	out := make([]model.TelemetryEvent, len(events))
	copy(out, events)
	return out, nil
}
