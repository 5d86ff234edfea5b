// Package match 实现姿势比对引擎：在目标帧与实时帧之间做加权关节角度比较。
// 引擎是纯函数——相同输入必然得到相同输出，状态机只消费它的结果。
package match

import "pose-play/server/internal/model"

// FeatureType 区分两种角度特征。
type FeatureType string

const (
	// ThreePoint 在 B 点处比较 B→A 与 B→C 的夹角（关节角）。
	ThreePoint FeatureType = "threePoint"
	// LineToLine 比较 A→B 与 C→D 两条线的夹角（姿态线）。
	LineToLine FeatureType = "lineToLine"
)

// Feature 是一条命名的角度比对规则。MaxDiffDeg 是允许的最大角差：
// 角差为 0 得 100 分，达到或超过 MaxDiffDeg 得 0 分，线性衰减。
type Feature struct {
	ID         string
	DataKey    string
	Type       FeatureType
	// Points 是关键点下标：ThreePoint 用前 3 个（A,B,C，B 为顶点），
	// LineToLine 用全部 4 个（A→B 与 C→D）。
	Points     [4]int
	Weight     float64
	MaxDiffDeg float64
}

// 特征表是静态数据，进程启动时注册一次。
// 下标遵循 MediaPipe Holistic：身体 33 点、单手 21 点、面部 468 点。
// 手部关节的容差比大关节更紧——手指角度噪声大但量程也小。
var features = []Feature{
	// 身体：左右肘/肩/髋/膝的三点关节角。
	{ID: "body.left_elbow", DataKey: model.KeyPose, Type: ThreePoint, Points: [4]int{11, 13, 15}, Weight: 1, MaxDiffDeg: 35},
	{ID: "body.right_elbow", DataKey: model.KeyPose, Type: ThreePoint, Points: [4]int{12, 14, 16}, Weight: 1, MaxDiffDeg: 35},
	{ID: "body.left_shoulder", DataKey: model.KeyPose, Type: ThreePoint, Points: [4]int{13, 11, 23}, Weight: 1, MaxDiffDeg: 35},
	{ID: "body.right_shoulder", DataKey: model.KeyPose, Type: ThreePoint, Points: [4]int{14, 12, 24}, Weight: 1, MaxDiffDeg: 35},
	{ID: "body.left_hip", DataKey: model.KeyPose, Type: ThreePoint, Points: [4]int{11, 23, 25}, Weight: 1, MaxDiffDeg: 40},
	{ID: "body.right_hip", DataKey: model.KeyPose, Type: ThreePoint, Points: [4]int{12, 24, 26}, Weight: 1, MaxDiffDeg: 40},
	{ID: "body.left_knee", DataKey: model.KeyPose, Type: ThreePoint, Points: [4]int{23, 25, 27}, Weight: 1, MaxDiffDeg: 40},
	{ID: "body.right_knee", DataKey: model.KeyPose, Type: ThreePoint, Points: [4]int{24, 26, 28}, Weight: 1, MaxDiffDeg: 40},
	// 躯干倾斜：肩线对髋线。
	{ID: "body.torso_tilt", DataKey: model.KeyPose, Type: LineToLine, Points: [4]int{11, 12, 23, 24}, Weight: 1, MaxDiffDeg: 20},

	// 左手：五指卷曲（腕-掌指-指尖）与张开角。张开角权重更高。
	{ID: "leftHand.thumb_curl", DataKey: model.KeyLeftHand, Type: ThreePoint, Points: [4]int{0, 2, 4}, Weight: 1, MaxDiffDeg: 25},
	{ID: "leftHand.index_curl", DataKey: model.KeyLeftHand, Type: ThreePoint, Points: [4]int{0, 5, 8}, Weight: 1, MaxDiffDeg: 25},
	{ID: "leftHand.middle_curl", DataKey: model.KeyLeftHand, Type: ThreePoint, Points: [4]int{0, 9, 12}, Weight: 1, MaxDiffDeg: 25},
	{ID: "leftHand.ring_curl", DataKey: model.KeyLeftHand, Type: ThreePoint, Points: [4]int{0, 13, 16}, Weight: 1, MaxDiffDeg: 25},
	{ID: "leftHand.pinky_curl", DataKey: model.KeyLeftHand, Type: ThreePoint, Points: [4]int{0, 17, 20}, Weight: 1, MaxDiffDeg: 25},
	{ID: "leftHand.finger_spread", DataKey: model.KeyLeftHand, Type: LineToLine, Points: [4]int{0, 5, 0, 17}, Weight: 2, MaxDiffDeg: 30},
	{ID: "leftHand.thumb_spread", DataKey: model.KeyLeftHand, Type: LineToLine, Points: [4]int{0, 4, 0, 8}, Weight: 2, MaxDiffDeg: 35},

	// 右手：与左手对称。
	{ID: "rightHand.thumb_curl", DataKey: model.KeyRightHand, Type: ThreePoint, Points: [4]int{0, 2, 4}, Weight: 1, MaxDiffDeg: 25},
	{ID: "rightHand.index_curl", DataKey: model.KeyRightHand, Type: ThreePoint, Points: [4]int{0, 5, 8}, Weight: 1, MaxDiffDeg: 25},
	{ID: "rightHand.middle_curl", DataKey: model.KeyRightHand, Type: ThreePoint, Points: [4]int{0, 9, 12}, Weight: 1, MaxDiffDeg: 25},
	{ID: "rightHand.ring_curl", DataKey: model.KeyRightHand, Type: ThreePoint, Points: [4]int{0, 13, 16}, Weight: 1, MaxDiffDeg: 25},
	{ID: "rightHand.pinky_curl", DataKey: model.KeyRightHand, Type: ThreePoint, Points: [4]int{0, 17, 20}, Weight: 1, MaxDiffDeg: 25},
	{ID: "rightHand.finger_spread", DataKey: model.KeyRightHand, Type: LineToLine, Points: [4]int{0, 5, 0, 17}, Weight: 2, MaxDiffDeg: 30},
	{ID: "rightHand.thumb_spread", DataKey: model.KeyRightHand, Type: LineToLine, Points: [4]int{0, 4, 0, 8}, Weight: 2, MaxDiffDeg: 35},

	// 面部：眼线对嘴线、张嘴角、眼线对鼻梁线。FaceMesh 下标。
	{ID: "face.tilt", DataKey: model.KeyFace, Type: LineToLine, Points: [4]int{33, 263, 61, 291}, Weight: 1, MaxDiffDeg: 12},
	{ID: "face.mouth_open", DataKey: model.KeyFace, Type: ThreePoint, Points: [4]int{13, 61, 14}, Weight: 1, MaxDiffDeg: 20},
	{ID: "face.yaw", DataKey: model.KeyFace, Type: LineToLine, Points: [4]int{33, 263, 168, 1}, Weight: 1, MaxDiffDeg: 15},
}

var featureByID map[string]*Feature

func init() {
	featureByID = make(map[string]*Feature, len(features))
	for i := range features {
		featureByID[features[i].ID] = &features[i]
	}
}

// All 返回注册表中全部特征的副本。
func All() []Feature {
	out := make([]Feature, len(features))
	copy(out, features)
	return out
}

// ByID 按 id 查找特征。
func ByID(id string) (*Feature, bool) {
	f, ok := featureByID[id]
	return f, ok
}

// IDsForInclude 根据用户的区域开关生成特征白名单。
// 约定：全部启用返回 nil（= 使用全部注册特征）；
// 全部关闭返回空切片（= 显式"无特征"，评分按 100/matched 处理）。
func IDsForInclude(inc model.IncludeSettings) []string {
	if inc.Body && inc.LeftHand && inc.RightHand && inc.Face {
		return nil
	}
	ids := []string{}
	for i := range features {
		if keyEnabled(features[i].DataKey, inc) {
			ids = append(ids, features[i].ID)
		}
	}
	return ids
}

// EnabledKeys 返回设置启用的关键点类别键，供数据门检查可用性。
func EnabledKeys(inc model.IncludeSettings) []string {
	keys := []string{}
	if inc.Body {
		keys = append(keys, model.KeyPose)
	}
	if inc.LeftHand {
		keys = append(keys, model.KeyLeftHand)
	}
	if inc.RightHand {
		keys = append(keys, model.KeyRightHand)
	}
	if inc.Face {
		keys = append(keys, model.KeyFace)
	}
	return keys
}

func keyEnabled(key string, inc model.IncludeSettings) bool {
	switch key {
	case model.KeyPose:
		return inc.Body
	case model.KeyLeftHand:
		return inc.LeftHand
	case model.KeyRightHand:
		return inc.RightHand
	case model.KeyFace:
		return inc.Face
	default:
		return false
	}
}
