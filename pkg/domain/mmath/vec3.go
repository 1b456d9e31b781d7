// 指示: miu200521358
package mmath

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const segmentLengthEpsilon = 1e-12

var (
	// ZERO_VEC3 は零ベクトルを表す。
	ZERO_VEC3 = Vec3{}
	// ONE_VEC3 は全成分1のベクトルを表す。
	ONE_VEC3 = Vec3{Vec: r3.Vec{X: 1, Y: 1, Z: 1}}
)

// Vec3 は3次元ベクトルを表す。
type Vec3 struct {
	r3.Vec
}

// NewVec3 は成分指定でVec3を生成する。
func NewVec3(x float64, y float64, z float64) Vec3 {
	return Vec3{Vec: r3.Vec{X: x, Y: y, Z: z}}
}

// Added は加算結果を返す。
func (v Vec3) Added(other Vec3) Vec3 {
	return Vec3{Vec: r3.Add(v.Vec, other.Vec)}
}

// Subed は減算結果を返す。
func (v Vec3) Subed(other Vec3) Vec3 {
	return Vec3{Vec: r3.Sub(v.Vec, other.Vec)}
}

// MuledScalar はスカラー倍の結果を返す。
func (v Vec3) MuledScalar(scale float64) Vec3 {
	return Vec3{Vec: r3.Scale(scale, v.Vec)}
}

// Dot は内積を返す。
func (v Vec3) Dot(other Vec3) float64 {
	return r3.Dot(v.Vec, other.Vec)
}

// Cross は外積を返す。
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{Vec: r3.Cross(v.Vec, other.Vec)}
}

// Length はベクトル長を返す。
func (v Vec3) Length() float64 {
	return r3.Norm(v.Vec)
}

// LengthSquared はベクトル長の二乗を返す。
func (v Vec3) LengthSquared() float64 {
	return r3.Norm2(v.Vec)
}

// Normalized は正規化済みベクトルを返す。長さ0の場合は零ベクトルを返す。
func (v Vec3) Normalized() Vec3 {
	length := v.Length()
	if length <= 0 {
		return ZERO_VEC3
	}
	return v.MuledScalar(1.0 / length)
}

// Distance は2点間距離を返す。
func (v Vec3) Distance(other Vec3) float64 {
	return v.Subed(other).Length()
}

// MinElements は成分ごとの最小値を返す。
func (v Vec3) MinElements(other Vec3) Vec3 {
	return NewVec3(math.Min(v.X, other.X), math.Min(v.Y, other.Y), math.Min(v.Z, other.Z))
}

// MaxElements は成分ごとの最大値を返す。
func (v Vec3) MaxElements(other Vec3) Vec3 {
	return NewVec3(math.Max(v.X, other.X), math.Max(v.Y, other.Y), math.Max(v.Z, other.Z))
}

// IsFinite は全成分が有限値か判定する。
func (v Vec3) IsFinite() bool {
	for _, value := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return false
		}
	}
	return true
}

// ClosestPointOnSegment は線分[segStart, segEnd]上で最も近い点を返す。
func ClosestPointOnSegment(point Vec3, segStart Vec3, segEnd Vec3) Vec3 {
	segment := segEnd.Subed(segStart)
	lengthSq := segment.LengthSquared()
	if lengthSq < segmentLengthEpsilon {
		return segStart
	}
	t := Clamp(point.Subed(segStart).Dot(segment)/lengthSq, 0.0, 1.0)
	return segStart.Added(segment.MuledScalar(t))
}

// DistanceToSegment は点から線分までの距離を返す。
func DistanceToSegment(point Vec3, segStart Vec3, segEnd Vec3) float64 {
	return point.Distance(ClosestPointOnSegment(point, segStart, segEnd))
}

// Clamp はmin-maxで値をクランプする。
func Clamp(value float64, min float64, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Clamp01 は[0,1]で値をクランプする。
func Clamp01(value float64) float64 {
	return Clamp(value, 0.0, 1.0)
}
