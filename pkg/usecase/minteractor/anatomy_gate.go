// 指示: miu200521358
package minteractor

import (
	"math"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

const (
	// gateFloor はゲート通過時の最小係数を表す。
	gateFloor = 0.001
	// gateSideMargin は左右判定の中心余白(正規化X)を表す。
	gateSideMargin = 0.01
	// gateSideWidthRatio は肩外端割合から腕ゲート幅を求める係数を表す。
	gateSideWidthRatio = 1.6
	// gateSideWidthMin は腕ゲート幅の下限を表す。
	gateSideWidthMin = 0.08
	// gateLegWidthRatio は脚X割合から脚ゲート幅を求める係数を表す。
	gateLegWidthRatio = 2.4
	// gateLegWidthMin は脚ゲート幅の下限を表す。
	gateLegWidthMin = 0.10
	// gateArmMinZOffset は腕下限高さを背骨基準から下げる量を表す。
	gateArmMinZOffset = 0.03
	// gateArmMinZFloor は腕下限高さの下限を表す。
	gateArmMinZFloor = 0.35
	// gateLegMaxZOffset は脚上限高さを腰基準から上げる量を表す。
	gateLegMaxZOffset = 0.10
	// gateLegMaxZCeiling は脚上限高さの上限を表す。
	gateLegMaxZCeiling = 0.72
	// gateLowTorsoZ は体幹ゲートを腰のみに絞る高さを表す。
	gateLowTorsoZ = 0.20
	// gateCenterMargin は中心ゲートの不感帯幅を表す。
	gateCenterMargin = 0.05
	// gateCenterWidthRatio は肩外端割合から中心ゲート幅を求める係数を表す。
	gateCenterWidthRatio = 2.0
	// gateCenterWidthMin は中心ゲート幅の下限を表す。
	gateCenterWidthMin = 0.25
	// gateNeckZMargin は頭部ゲートを首基準から下げる量を表す。
	gateNeckZMargin = 0.06
)

// anatomyGate はボーンと頂点の正規化位置から距離ウェイトの減衰係数を返す。
// xNormは中心基準・zNormは底面基準でいずれも全高比。0は割当対象外を表す。
func anatomyGate(boneName string, xNorm, zNorm float64, refs *model.AnatomyRefs) float64 {
	if refs == nil {
		return 1.0
	}
	sideWidth := math.Max(refs.ShoulderOuterFrac*gateSideWidthRatio, gateSideWidthMin)
	legWidth := math.Max(refs.LegXOffsetFrac*gateLegWidthRatio, gateLegWidthMin)
	armMinZ := math.Max(refs.SpineHeightFrac-gateArmMinZOffset, gateArmMinZFloor)
	legMaxZ := math.Min(refs.HipsHeightFrac+gateLegMaxZOffset, gateLegMaxZCeiling)

	switch model.ResolveBoneRegion(boneName) {
	case model.BoneRegionLeftArm:
		return armGate(xNorm, zNorm, sideWidth, armMinZ)
	case model.BoneRegionRightArm:
		return armGate(-xNorm, zNorm, sideWidth, armMinZ)
	case model.BoneRegionLeftLeg:
		return legGate(xNorm, zNorm, legWidth, legMaxZ)
	case model.BoneRegionRightLeg:
		return legGate(-xNorm, zNorm, legWidth, legMaxZ)
	case model.BoneRegionTorso:
		return torsoGate(boneName, xNorm, zNorm, refs)
	case model.BoneRegionHead:
		return headGate(xNorm, zNorm, refs)
	default:
		return 1.0
	}
}

// armGate は腕ボーンの減衰係数を返す。sideXは当該側を正とした正規化Xとする。
func armGate(sideX, zNorm, sideWidth, armMinZ float64) float64 {
	if sideX <= -gateSideMargin || zNorm < armMinZ {
		return 0.0
	}
	lateral := mmath.Clamp01((sideX + gateSideMargin) / sideWidth)
	vertical := mmath.Clamp01((zNorm - armMinZ) / (1.0 - armMinZ))
	return math.Max(gateFloor, lateral*vertical)
}

// legGate は脚ボーンの減衰係数を返す。sideXは当該側を正とした正規化Xとする。
func legGate(sideX, zNorm, legWidth, legMaxZ float64) float64 {
	if sideX <= -gateSideMargin || zNorm > legMaxZ {
		return 0.0
	}
	lateral := mmath.Clamp01((sideX + gateSideMargin) / legWidth)
	vertical := mmath.Clamp01((legMaxZ - zNorm) / math.Max(legMaxZ, gateFloor))
	return math.Max(gateFloor, lateral*vertical)
}

// torsoGate は体幹ボーンの減衰係数を返す。
func torsoGate(boneName string, xNorm, zNorm float64, refs *model.AnatomyRefs) float64 {
	if zNorm < gateLowTorsoZ {
		if boneName == model.HIPS.String() {
			return 1.0
		}
		return 0.0
	}
	center := centerGate(xNorm, refs)
	switch boneName {
	case model.HIPS.String():
		upper := refs.HipsHeightFrac + 0.08
		return math.Max(gateFloor, 0.6+0.4*mmath.Clamp01((upper-zNorm)/math.Max(upper, gateFloor)))
	case model.SPINE.String():
		return math.Max(gateFloor, center*mmath.Clamp01((zNorm-(refs.HipsHeightFrac-0.05))/0.35))
	case model.SPINE1.String():
		return math.Max(gateFloor, center*mmath.Clamp01((zNorm-(refs.SpineHeightFrac-0.10))/0.35))
	case model.SPINE2.String():
		return math.Max(gateFloor, center*mmath.Clamp01((zNorm-(refs.Spine1HeightFrac-0.10))/0.30))
	default:
		return 1.0
	}
}

// headGate は頭部ボーンの減衰係数を返す。
func headGate(xNorm, zNorm float64, refs *model.AnatomyRefs) float64 {
	lower := refs.NeckHeightFrac - gateNeckZMargin
	if zNorm < lower {
		return 0.0
	}
	center := centerGate(xNorm, refs)
	return math.Max(gateFloor, center*mmath.Clamp01((zNorm-lower)/math.Max(1.0-lower, gateFloor)))
}

// centerGate は体幹中心からの横ずれに対する減衰係数を返す。
func centerGate(xNorm float64, refs *model.AnatomyRefs) float64 {
	width := math.Max(refs.ShoulderOuterFrac*gateCenterWidthRatio, gateCenterWidthMin)
	return 1.0 - mmath.Clamp01((math.Abs(xNorm)-gateCenterMargin)/width)
}
