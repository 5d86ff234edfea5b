package engine

import (
	"sort"
	"strconv"

	"pose-play/server/internal/match"
	"pose-play/server/internal/model"
)

// NodeBuilder：把授权内容 + 设置开关翻译成一条不可变的节点序列。
// 只在会话创建时调用一次，游玩过程中绝不重建。
//
// 纳入规则 = 设置开关（默认开）∧ 结构前提：
//   INTRO/OUTRO 需要至少一句非空台词；INTUITION 需要问题 + 显式答案；
//   INSIGHT 需要问题 + 至少一个选项；TWEEN 需要至少 2 个姿势；
//   POSE_MATCH 需要至少 1 个姿势。
// 不满足前提的类型被静默剔除，而不是生成残缺节点。
func BuildNodes(game *model.Game, levelIndex int, settings model.Settings) []model.StateNode {
	if game == nil || levelIndex < 0 || levelIndex >= len(game.Levels) {
		return nil
	}
	level := &game.Levels[levelIndex]
	poseIDs := orderedPoseIDs(level.Poses)

	var nodes []model.StateNode

	if settings.States.Intro {
		if lines := nonEmptyLines(level.Intro); len(lines) > 0 {
			nodes = append(nodes, model.StateNode{
				Type:          model.NodeIntro,
				LevelID:       level.ID,
				Lines:         lines,
				CursorDelayMS: level.Timing.CursorDelayMS,
				AutoAdvanceMS: level.Timing.AutoAdvanceMS,
			})
		}
	}

	if settings.States.Intuition && level.Intuition != nil &&
		level.Intuition.Question != "" && level.Intuition.Answer != nil {
		nodes = append(nodes, model.StateNode{
			Type:            model.NodeIntuition,
			LevelID:         level.ID,
			Question:        level.Intuition.Question,
			TrueFalseAnswer: level.Intuition.Answer,
			CursorDelayMS:   level.Timing.CursorDelayMS,
		})
	}

	if settings.States.Tween && len(poseIDs) >= 2 {
		nodes = append(nodes, model.StateNode{
			Type:           model.NodeTween,
			LevelID:        level.ID,
			PoseIDs:        poseIDs,
			StepDurationMS: stepDuration(level),
			Easing:         easing(level),
			CursorDelayMS:  level.Timing.CursorDelayMS,
		})
	}

	if settings.States.PoseMatch && len(poseIDs) >= 1 {
		steps := repeatSequence(poseIDs, settings.Reps.PoseMatch)
		nodes = append(nodes, model.StateNode{
			Type:             model.NodePoseMatch,
			LevelID:          level.ID,
			PoseIDs:          steps,
			Tolerances:       resolveTolerances(level, poseIDs, steps, settings),
			DefaultTolerance: defaultTolerance(level, settings),
			CursorDelayMS:    level.Timing.CursorDelayMS,
		})
	}

	if settings.States.Insight && level.Insight != nil &&
		level.Insight.Question != "" && len(level.Insight.Options) > 0 {
		nodes = append(nodes, model.StateNode{
			Type:          model.NodeInsight,
			LevelID:       level.ID,
			Question:      level.Insight.Question,
			Options:       level.Insight.Options,
			CorrectID:     level.Insight.CorrectID,
			CursorDelayMS: level.Timing.CursorDelayMS,
		})
	}

	if settings.States.Outro {
		if lines := nonEmptyLines(level.Outro); len(lines) > 0 {
			nodes = append(nodes, model.StateNode{
				Type:          model.NodeOutro,
				LevelID:       level.ID,
				Lines:         lines,
				CursorDelayMS: level.Timing.CursorDelayMS,
				AutoAdvanceMS: level.Timing.AutoAdvanceMS,
			})
		}
	}

	return nodes
}

// orderedPoseIDs 把姿势表的键按数字后缀稳定排序：
// "pose_2" < "pose_10"，无后缀的按字典序排到数字后缀之后。
// 同一份授权内容永远得到同一个回放顺序。
func orderedPoseIDs(poses map[string]model.PoseEntry) []string {
	if len(poses) == 0 {
		return nil
	}
	ids := make([]string, 0, len(poses))
	for id := range poses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ni, iok := numericSuffix(ids[i])
		nj, jok := numericSuffix(ids[j])
		switch {
		case iok && jok && ni != nj:
			return ni < nj
		case iok != jok:
			return iok
		default:
			return ids[i] < ids[j]
		}
	})
	return ids
}

// numericSuffix 提取 id 末尾的十进制数字串。
func numericSuffix(id string) (int, bool) {
	end := len(id)
	start := end
	for start > 0 && id[start-1] >= '0' && id[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}
	n, err := strconv.Atoi(id[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// repeatSequence 按重复次数平铺姿势序列（reps < 1 按 1 处理）。
func repeatSequence(ids []string, reps int) []string {
	if reps < 1 {
		reps = 1
	}
	out := make([]string, 0, len(ids)*reps)
	for i := 0; i < reps; i++ {
		out = append(out, ids...)
	}
	return out
}

// resolveTolerances 为每个步骤预解析生效阈值，优先级：
// 逐步授权数组 → 逐姿势阈值 → 节点级默认 → 全局兜底（70）。
// 状态机运行期直接按下标取值，不再回溯授权优先级。
func resolveTolerances(level *model.Level, base, steps []string, settings model.Settings) []float64 {
	fallback := defaultTolerance(level, settings)
	out := make([]float64, len(steps))
	for i, poseID := range steps {
		baseIdx := i % len(base)
		tol := 0.0
		if baseIdx < len(level.StepTolerances) {
			tol = match.ResolveTolerancePct(level.StepTolerances[baseIdx])
		}
		if tol == 0 {
			tol = match.ResolveTolerancePct(level.Poses[poseID].Tolerance)
		}
		if tol == 0 {
			tol = fallback
		}
		out[i] = tol
	}
	return out
}

func defaultTolerance(level *model.Level, settings model.Settings) float64 {
	if tol := match.ResolveTolerancePct(level.DefaultTolerance); tol > 0 {
		return tol
	}
	if tol := match.ResolveTolerancePct(settings.Match.ThresholdPct); tol > 0 {
		return tol
	}
	return match.DefaultThresholdPct
}

func nonEmptyLines(lines []model.DialogueLine) []model.DialogueLine {
	var out []model.DialogueLine
	for _, l := range lines {
		if l.Text != "" {
			out = append(out, l)
		}
	}
	return out
}

func stepDuration(level *model.Level) float64 {
	if level.Timing.StepDurationMS > 0 {
		return level.Timing.StepDurationMS
	}
	return 1000
}

func easing(level *model.Level) string {
	if level.Timing.Easing != "" {
		return level.Timing.Easing
	}
	return "easeInOutQuad"
}
