// 指示: miu200521358
package model

import (
	"fmt"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
)

// Skeleton はHipsを根とするボーンツリーを表す。
type Skeleton struct {
	name  string
	Bones *BoneCollection
}

// NewSkeleton は空のスケルトンを生成する。
func NewSkeleton(name string) *Skeleton {
	return &Skeleton{
		name:  name,
		Bones: NewBoneCollection(),
	}
}

// Name はスケルトン名を返す。
func (s *Skeleton) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Bounds はボーンhead/tailワールド座標のバウンディングボックスを返す。
func (s *Skeleton) Bounds() (mmath.Vec3, mmath.Vec3, bool) {
	if s == nil || s.Bones.Len() == 0 {
		return mmath.ZERO_VEC3, mmath.ZERO_VEC3, false
	}
	first := true
	minV := mmath.ZERO_VEC3
	maxV := mmath.ZERO_VEC3
	for _, bone := range s.Bones.Values() {
		if bone == nil {
			continue
		}
		for _, point := range []mmath.Vec3{bone.Head, bone.Tail} {
			if first {
				minV = point
				maxV = point
				first = false
				continue
			}
			minV = minV.MinElements(point)
			maxV = maxV.MaxElements(point)
		}
	}
	if first {
		return mmath.ZERO_VEC3, mmath.ZERO_VEC3, false
	}
	return minV, maxV, true
}

// Height はスケルトンのZ方向高さを返す。
func (s *Skeleton) Height() float64 {
	minV, maxV, ok := s.Bounds()
	if !ok {
		return 0
	}
	return maxV.Z - minV.Z
}

// Validate はツリー不変条件(親存在・循環なし・有限座標)を検証する。
func (s *Skeleton) Validate() error {
	if s == nil || s.Bones.Len() == 0 {
		return fmt.Errorf("スケルトンにボーンがありません")
	}
	for _, bone := range s.Bones.Values() {
		if bone == nil {
			continue
		}
		if !bone.IsFinite() {
			return fmt.Errorf("ボーン座標が有限値ではありません: %s", bone.Name())
		}
		if bone.ParentIndex >= 0 {
			if bone.ParentIndex >= bone.Index() {
				return fmt.Errorf("親ボーンが先行して登録されていません: %s", bone.Name())
			}
			if _, err := s.Bones.Get(bone.ParentIndex); err != nil {
				return fmt.Errorf("親ボーンindexが不正です: %s", bone.Name())
			}
		}
	}
	return nil
}
