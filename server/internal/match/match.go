package match

import (
	"math"

	"pose-play/server/internal/model"
)

// DefaultThresholdPct 是全局兜底阈值。
const DefaultThresholdPct = 70

// Input 是一次比对的输入。
type Input struct {
	Live   *model.LandmarkFrame
	Target *model.LandmarkFrame
	// FeatureIDs 为 nil 使用全部注册特征；为空切片表示显式"无特征"
	// （所有类别被用户关闭），按约定得 100/matched——没有可以不一致的东西。
	FeatureIDs   []string
	ThresholdPct float64
}

// Result 是一次比对的输出。对相同输入是确定性的。
type Result struct {
	Overall      float64
	Matched      bool
	ThresholdPct float64
	PerSegment   map[string]float64
	PerFeature   []model.FeatureScore
}

// ComputePoseMatch 对实时帧与目标帧做加权角度比对。
//
// 步骤：选特征（两侧都可观测才参与）→ 逐特征算角差 →
// 线性衰减得 0–100 分 → 加权平均 → 与阈值比较。
// 某一侧角度退化（零长度向量）的特征计 0 分而不是跳过。
func ComputePoseMatch(in Input) Result {
	threshold := clampPct(in.ThresholdPct)
	if threshold == 0 {
		threshold = DefaultThresholdPct
	}

	// 显式空选择：所有类别被关闭，定义为满分匹配。
	if in.FeatureIDs != nil && len(in.FeatureIDs) == 0 {
		return Result{Overall: 100, Matched: true, ThresholdPct: threshold}
	}

	selected := selectFeatures(in)

	res := Result{ThresholdPct: threshold}
	if len(selected) == 0 {
		// 没有任何特征在两侧同时可观测：0 分，不匹配。
		res.Matched = threshold <= 0
		return res
	}

	var weightSum, scoreSum float64
	segScore := map[string]float64{}
	segWeight := map[string]float64{}

	for _, f := range selected {
		fs := scoreFeature(f, in.Live, in.Target)
		res.PerFeature = append(res.PerFeature, fs)
		scoreSum += fs.Score * f.Weight
		weightSum += f.Weight
		segScore[f.DataKey] += fs.Score * f.Weight
		segWeight[f.DataKey] += f.Weight
	}

	res.Overall = scoreSum / weightSum
	res.PerSegment = make(map[string]float64, len(segScore))
	for key, sum := range segScore {
		res.PerSegment[key] = sum / segWeight[key]
	}
	res.Matched = res.Overall >= threshold
	return res
}

// selectFeatures 求白名单与"两侧均可观测"的交集。
func selectFeatures(in Input) []*Feature {
	var candidates []*Feature
	if in.FeatureIDs == nil {
		for i := range features {
			candidates = append(candidates, &features[i])
		}
	} else {
		for _, id := range in.FeatureIDs {
			if f, ok := ByID(id); ok {
				candidates = append(candidates, f)
			}
		}
	}

	var usable []*Feature
	for _, f := range candidates {
		if observable(f, in.Live) && observable(f, in.Target) {
			usable = append(usable, f)
		}
	}
	return usable
}

// observable 判断特征要求的全部关键点在帧中存在且坐标有限。
func observable(f *Feature, frame *model.LandmarkFrame) bool {
	points := frame.ByKey(f.DataKey)
	if points == nil {
		return false
	}
	n := 3
	if f.Type == LineToLine {
		n = 4
	}
	for i := 0; i < n; i++ {
		idx := f.Points[i]
		if idx < 0 || idx >= len(points) || !points[idx].Finite() {
			return false
		}
	}
	return true
}

// scoreFeature 计算单个特征的角差分数。
func scoreFeature(f *Feature, live, target *model.LandmarkFrame) model.FeatureScore {
	fs := model.FeatureScore{
		FeatureID: f.ID,
		DataKey:   f.DataKey,
		Weight:    f.Weight,
	}

	liveDeg, liveOK := featureAngle(f, live)
	targetDeg, targetOK := featureAngle(f, target)
	if !liveOK || !targetOK {
		// 退化角度：计 0 分，不从集合里剔除。
		return fs
	}

	fs.Computed = true
	fs.LiveDeg = liveDeg
	fs.TargetDeg = targetDeg
	fs.DiffDeg = math.Abs(liveDeg - targetDeg)
	fs.Score = clampPct(100 * (1 - fs.DiffDeg/f.MaxDiffDeg))
	return fs
}

func featureAngle(f *Feature, frame *model.LandmarkFrame) (float64, bool) {
	points := frame.ByKey(f.DataKey)
	switch f.Type {
	case ThreePoint:
		return threePointAngleDeg(points[f.Points[0]], points[f.Points[1]], points[f.Points[2]])
	case LineToLine:
		return lineAngleDeg(points[f.Points[0]], points[f.Points[1]], points[f.Points[2]], points[f.Points[3]])
	default:
		return 0, false
	}
}

// ResolveTolerancePct 把授权阈值归一化到 [0,100]。
// 兼容性：<=1 的值按 0–1 分数处理并放大 100 倍；零值表示未授权，返回 0。
func ResolveTolerancePct(raw float64) float64 {
	if raw <= 0 {
		return 0
	}
	if raw <= 1 {
		raw *= 100
	}
	return clampPct(raw)
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
