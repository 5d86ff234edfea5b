package match

import (
	"math"

	"pose-play/server/internal/model"
)

// vec3 是内部计算用向量。关键点缺省 Z 按 0 处理，保证 2D/3D 帧可混用。
type vec3 struct {
	x, y, z float64
}

func pointVec(p model.LandmarkPoint) vec3 {
	v := vec3{x: p.X, y: p.Y}
	if p.Z != nil {
		v.z = *p.Z
	}
	return v
}

func sub(a, b vec3) vec3 {
	return vec3{x: a.x - b.x, y: a.y - b.y, z: a.z - b.z}
}

func dot(a, b vec3) float64 {
	return a.x*b.x + a.y*b.y + a.z*b.z
}

func norm(a vec3) float64 {
	return math.Sqrt(dot(a, a))
}

const epsilon = 1e-9

// vectorAngleDeg 返回两向量夹角（度）。零长度向量视为退化，ok=false。
func vectorAngleDeg(u, v vec3) (float64, bool) {
	nu, nv := norm(u), norm(v)
	if nu < epsilon || nv < epsilon {
		return 0, false
	}
	cos := dot(u, v) / (nu * nv)
	// 浮点误差可能越过 [-1,1]，先夹紧再取 arccos。
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi, true
}

// threePointAngleDeg 计算 B 点处 B→A 与 B→C 的夹角（度）。
func threePointAngleDeg(a, b, c model.LandmarkPoint) (float64, bool) {
	return vectorAngleDeg(sub(pointVec(a), pointVec(b)), sub(pointVec(c), pointVec(b)))
}

// lineAngleDeg 计算 A→B 与 C→D 两条线之间的夹角（度）。
func lineAngleDeg(a, b, c, d model.LandmarkPoint) (float64, bool) {
	return vectorAngleDeg(sub(pointVec(b), pointVec(a)), sub(pointVec(d), pointVec(c)))
}
