package session

import (
	"context"
	"errors"
	"sync"

	"pose-play/server/internal/model"
)

var ErrNotFound = errors.New("play session not found")

// InMemoryStore 是一个基于内存的会话存储实现。
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]*model.Session
}

func NewInMemoryStore() *InMemoryStore {
	// 第一阶段用内存 store：实现简单、调试方便。
	// 注意：重启即丢数据；多实例部署需要替换为 Redis/DB。
	return &InMemoryStore{data: make(map[string]*model.Session)}
}

// Get 根据 PlayID 获取会话快照。
func (s *InMemoryStore) Get(_ context.Context, playID string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.data[playID]
	if !ok {
		return nil, ErrNotFound
	}

	return sess, nil
}

// Save 保存或更新会话。归约器按整体替换演化会话，这里存的永远是完整快照。
func (s *InMemoryStore) Save(_ context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[sess.PlayID] = sess
	return nil
}

// Delete 移除会话。不存在时静默成功。
func (s *InMemoryStore) Delete(_ context.Context, playID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, playID)
	return nil
}
