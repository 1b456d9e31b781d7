// 指示: miu200521358
package mmath

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Mat4 は列優先の4x4行列を表す。
type Mat4 struct {
	mgl64.Mat4
}

// NewMat4 は単位行列を生成する。
func NewMat4() Mat4 {
	return Mat4{Mat4: mgl64.Ident4()}
}

// NewMat4FromColumnMajor は列優先16要素スライスから行列を生成する。
func NewMat4FromColumnMajor(values []float64) (Mat4, bool) {
	if len(values) != 16 {
		return NewMat4(), false
	}
	mat := mgl64.Mat4{}
	copy(mat[:], values)
	return Mat4{Mat4: mat}, true
}

// NewMat4FromTRS は平行移動・回転・拡縮からローカル行列を合成する。
func NewMat4FromTRS(translation Vec3, rotation Quaternion, scale Vec3) Mat4 {
	translateMat := mgl64.Translate3D(translation.X, translation.Y, translation.Z)
	rotateMat := rotation.Quat.Normalize().Mat4()
	scaleMat := mgl64.Scale3D(scale.X, scale.Y, scale.Z)
	return Mat4{Mat4: translateMat.Mul4(rotateMat).Mul4(scaleMat)}
}

// Muled は行列積 m×other を返す。
func (m Mat4) Muled(other Mat4) Mat4 {
	return Mat4{Mat4: m.Mat4.Mul4(other.Mat4)}
}

// Translation は平行移動成分を返す。
func (m Mat4) Translation() Vec3 {
	return NewVec3(m.Mat4[12], m.Mat4[13], m.Mat4[14])
}

// MulVec3 は位置ベクトル(w=1)へ行列を適用する。
func (m Mat4) MulVec3(v Vec3) Vec3 {
	result := mgl64.TransformCoordinate(mgl64.Vec3{v.X, v.Y, v.Z}, m.Mat4)
	return NewVec3(result.X(), result.Y(), result.Z())
}

// Quaternion は回転クォータニオンを表す。
type Quaternion struct {
	mgl64.Quat
}

// NewQuaternion は単位クォータニオンを生成する。
func NewQuaternion() Quaternion {
	return Quaternion{Quat: mgl64.QuatIdent()}
}

// NewQuaternionByValues はx,y,z,w成分からクォータニオンを生成する。
func NewQuaternionByValues(x float64, y float64, z float64, w float64) Quaternion {
	return Quaternion{Quat: mgl64.Quat{W: w, V: mgl64.Vec3{x, y, z}}}
}

// Normalized は正規化済みクォータニオンを返す。
func (q Quaternion) Normalized() Quaternion {
	return Quaternion{Quat: q.Quat.Normalize()}
}

// ToMat4 は回転行列へ変換する。
func (q Quaternion) ToMat4() Mat4 {
	return Mat4{Mat4: q.Quat.Mat4()}
}
