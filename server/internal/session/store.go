package session

import (
	"context"

	"pose-play/server/internal/model"
)

type Store interface {
	Get(ctx context.Context, playID string) (*model.Session, error)
	Save(ctx context.Context, s *model.Session) error
	// Delete 移除会话。关卡游玩结束后由 orchestrator 清理。
	Delete(ctx context.Context, playID string) error
}
