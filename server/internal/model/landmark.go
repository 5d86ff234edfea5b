package model

import "math"

// 关键点数组的命名键，与相机/ML 协作方的帧结构一一对应。
const (
	KeyPose      = "poseLandmarks"
	KeyLeftHand  = "leftHandLandmarks"
	KeyRightHand = "rightHandLandmarks"
	KeyFace      = "faceLandmarks"
)

// LandmarkPoint 是一个归一化到 [0,1] 的追踪关键点。
type LandmarkPoint struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          *float64 `json:"z,omitempty"`
	Visibility *float64 `json:"visibility,omitempty"`
}

// Finite 判断关键点坐标是否有限可用（NaN/Inf 视为缺失）。
func (p LandmarkPoint) Finite() bool {
	if math.IsNaN(p.X) || math.IsInf(p.X, 0) {
		return false
	}
	if math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
		return false
	}
	if p.Z != nil && (math.IsNaN(*p.Z) || math.IsInf(*p.Z, 0)) {
		return false
	}
	return true
}

// LandmarkFrame 是一帧按类别分组的关键点数组。
// 核心不驱动采集，只在需要评分时消费最近一帧。
type LandmarkFrame struct {
	PoseLandmarks      []LandmarkPoint `json:"poseLandmarks,omitempty"`
	LeftHandLandmarks  []LandmarkPoint `json:"leftHandLandmarks,omitempty"`
	RightHandLandmarks []LandmarkPoint `json:"rightHandLandmarks,omitempty"`
	FaceLandmarks      []LandmarkPoint `json:"faceLandmarks,omitempty"`
}

// ByKey 按命名键返回对应的关键点数组；未知键返回 nil。
func (f *LandmarkFrame) ByKey(key string) []LandmarkPoint {
	if f == nil {
		return nil
	}
	switch key {
	case KeyPose:
		return f.PoseLandmarks
	case KeyLeftHand:
		return f.LeftHandLandmarks
	case KeyRightHand:
		return f.RightHandLandmarks
	case KeyFace:
		return f.FaceLandmarks
	default:
		return nil
	}
}

// Has 判断某类关键点数组是否整体可用（非空）。
func (f *LandmarkFrame) Has(key string) bool {
	return len(f.ByKey(key)) > 0
}
