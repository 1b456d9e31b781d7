// 指示: miu200521358
package mmath

import (
	"math"
	"testing"
)

func TestNewMat4FromColumnMajor(t *testing.T) {
	values := []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		2, 3, 4, 1,
	}
	mat, ok := NewMat4FromColumnMajor(values)
	if !ok {
		t.Fatalf("valid 16 values should succeed")
	}
	translation := mat.Translation()
	if translation.X != 2 || translation.Y != 3 || translation.Z != 4 {
		t.Fatalf("translation mismatch: %+v", translation)
	}

	if _, ok := NewMat4FromColumnMajor([]float64{1, 2, 3}); ok {
		t.Fatalf("invalid length should fail")
	}
}

func TestNewMat4FromTRS(t *testing.T) {
	mat := NewMat4FromTRS(NewVec3(1, 2, 3), NewQuaternion(), NewVec3(2, 2, 2))
	transformed := mat.MulVec3(NewVec3(1, 0, 0))
	expected := NewVec3(3, 2, 3)
	if transformed.Distance(expected) > 1e-12 {
		t.Fatalf("TRS transform mismatch: %+v != %+v", transformed, expected)
	}
}

func TestMat4MulVec3WithRotation(t *testing.T) {
	// Z軸回り90度回転: (1,0,0)→(0,1,0)
	halfAngle := math.Pi / 4
	rotation := NewQuaternionByValues(0, 0, math.Sin(halfAngle), math.Cos(halfAngle))
	mat := NewMat4FromTRS(ZERO_VEC3, rotation, ONE_VEC3)
	transformed := mat.MulVec3(NewVec3(1, 0, 0))
	if transformed.Distance(NewVec3(0, 1, 0)) > 1e-9 {
		t.Fatalf("rotation transform mismatch: %+v", transformed)
	}
}

func TestMat4Muled(t *testing.T) {
	translate := NewMat4FromTRS(NewVec3(1, 0, 0), NewQuaternion(), ONE_VEC3)
	scale := NewMat4FromTRS(ZERO_VEC3, NewQuaternion(), NewVec3(2, 2, 2))
	combined := translate.Muled(scale)
	transformed := combined.MulVec3(NewVec3(1, 1, 1))
	if transformed.Distance(NewVec3(3, 2, 2)) > 1e-12 {
		t.Fatalf("combined transform mismatch: %+v", transformed)
	}
}
