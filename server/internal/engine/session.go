// Package engine 实现会话状态机：节点序列构建、tick 驱动的归约器、
// 定时器子系统与副作用出站箱。归约器对其输入域是全函数——正常运行期
// 绝不报错；只有会话构建可能失败，且只在继续游玩已无意义时失败。
package engine

import (
	"fmt"

	"github.com/google/uuid"

	"pose-play/server/internal/model"
)

// NewSession 为一次关卡游玩构建全新会话。
//
// 构建致命错误：内容缺失或构建出的节点序列为空——与其启动一台
// 没有东西可跑的状态机，不如在创建时大声失败。
func NewSession(playID string, game *model.Game, levelIndex int, settings model.Settings) (*model.Session, error) {
	if game == nil {
		return nil, fmt.Errorf("new session: game is required")
	}
	if levelIndex < 0 || levelIndex >= len(game.Levels) {
		return nil, fmt.Errorf("new session: level index %d out of range (game %s has %d levels)",
			levelIndex, game.ID, len(game.Levels))
	}

	nodes := BuildNodes(game, levelIndex, settings)
	if len(nodes) == 0 {
		return nil, fmt.Errorf("new session: level %s produced no runnable nodes", game.Levels[levelIndex].ID)
	}

	if playID == "" {
		playID = uuid.NewString()
	}

	s := &model.Session{
		PlayID:     playID,
		GameID:     game.ID,
		LevelID:    game.Levels[levelIndex].ID,
		Game:       game,
		LevelIndex: levelIndex,
		Nodes:      nodes,
		Settings:   settings,
	}

	emitTelemetry(s, model.TelemetryEvent{Type: model.TelemetrySessionStart})
	enterNode(s)
	return s, nil
}

// restart 实现 RESTART_LEVEL：丢弃当前会话、用同样的输入重建一个
// （create, don't repair）。未 drain 的效果不能被静默丢弃，原样前置
// 到新会话的出站箱里，中间插入一条 LEVEL_RESTART 事实。
func restart(s *model.Session) *model.Session {
	next, err := NewSession(s.PlayID, s.Game, s.LevelIndex, s.Settings)
	if err != nil {
		// 同样的输入已经成功构建过一次，这里实际不可达；
		// 万一内容被换掉，保持旧会话继续跑。
		return s.Clone()
	}

	carried := make([]model.Effect, 0, len(s.Effects)+1+len(next.Effects))
	carried = append(carried, s.Effects...)
	carried = append(carried, model.Effect{
		Type: model.EffectTelemetry,
		Event: &model.TelemetryEvent{
			EventID:   uuid.NewString(),
			PlayID:    s.PlayID,
			Type:      model.TelemetryLevelRestart,
			At:        s.Clock.Now,
			NodeIndex: s.NodeIndex,
		},
	})
	next.Effects = append(carried, next.Effects...)
	return next
}
