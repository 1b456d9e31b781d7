// 指示: miu200521358
package model

import "strings"

const (
	// BoneNamePrefix はMixamo互換ボーン名の接頭辞を表す。
	BoneNamePrefix = "mixamorig:"
	// boneNameSidePlaceholder は左右テンプレートの置換対象を表す。
	boneNameSidePlaceholder = "{Side}"
)

// StandardBoneName はMixamo互換の標準ボーン名を表す。
// 左右対のボーンは {Side} プレースホルダを含むテンプレートとして定義する。
type StandardBoneName string

const (
	HIPS         StandardBoneName = "mixamorig:Hips"
	SPINE        StandardBoneName = "mixamorig:Spine"
	SPINE1       StandardBoneName = "mixamorig:Spine1"
	SPINE2       StandardBoneName = "mixamorig:Spine2"
	NECK         StandardBoneName = "mixamorig:Neck"
	HEAD         StandardBoneName = "mixamorig:Head"
	HEAD_TOP_END StandardBoneName = "mixamorig:HeadTop_End"
	SHOULDER     StandardBoneName = "mixamorig:{Side}Shoulder"
	ARM          StandardBoneName = "mixamorig:{Side}Arm"
	FORE_ARM     StandardBoneName = "mixamorig:{Side}ForeArm"
	HAND         StandardBoneName = "mixamorig:{Side}Hand"
	UP_LEG       StandardBoneName = "mixamorig:{Side}UpLeg"
	LEG          StandardBoneName = "mixamorig:{Side}Leg"
	FOOT         StandardBoneName = "mixamorig:{Side}Foot"
	TOE_BASE     StandardBoneName = "mixamorig:{Side}ToeBase"
)

// String は左右指定のないボーン名を返す。
func (n StandardBoneName) String() string {
	return string(n)
}

// Left は左側のボーン名を返す。
func (n StandardBoneName) Left() string {
	return strings.ReplaceAll(string(n), boneNameSidePlaceholder, "Left")
}

// Right は右側のボーン名を返す。
func (n StandardBoneName) Right() string {
	return strings.ReplaceAll(string(n), boneNameSidePlaceholder, "Right")
}

// BoneRegion はウェイトゲート判定に用いる身体領域を表す。
type BoneRegion int

const (
	// BoneRegionOther は領域判定対象外を表す。
	BoneRegionOther BoneRegion = iota
	// BoneRegionLeftArm は左腕領域を表す。
	BoneRegionLeftArm
	// BoneRegionRightArm は右腕領域を表す。
	BoneRegionRightArm
	// BoneRegionLeftLeg は左脚領域を表す。
	BoneRegionLeftLeg
	// BoneRegionRightLeg は右脚領域を表す。
	BoneRegionRightLeg
	// BoneRegionTorso は体幹領域を表す。
	BoneRegionTorso
	// BoneRegionHead は頭部領域を表す。
	BoneRegionHead
)

// leftArmBoneNames は左腕領域ボーン名集合を保持する。
var leftArmBoneNames = sideBoneNameSet("Left", SHOULDER, ARM, FORE_ARM, HAND)

// rightArmBoneNames は右腕領域ボーン名集合を保持する。
var rightArmBoneNames = sideBoneNameSet("Right", SHOULDER, ARM, FORE_ARM, HAND)

// leftLegBoneNames は左脚領域ボーン名集合を保持する。
var leftLegBoneNames = sideBoneNameSet("Left", UP_LEG, LEG, FOOT, TOE_BASE)

// rightLegBoneNames は右脚領域ボーン名集合を保持する。
var rightLegBoneNames = sideBoneNameSet("Right", UP_LEG, LEG, FOOT, TOE_BASE)

// torsoBoneNames は体幹領域ボーン名集合を保持する。
var torsoBoneNames = map[string]struct{}{
	HIPS.String():   {},
	SPINE.String():  {},
	SPINE1.String(): {},
	SPINE2.String(): {},
}

// headBoneNames は頭部領域ボーン名集合を保持する。
var headBoneNames = map[string]struct{}{
	NECK.String():         {},
	HEAD.String():         {},
	HEAD_TOP_END.String(): {},
}

// sideBoneNameSet は左右テンプレート名集合を構築する。
func sideBoneNameSet(side string, names ...StandardBoneName) map[string]struct{} {
	set := map[string]struct{}{}
	for _, name := range names {
		set[strings.ReplaceAll(string(name), boneNameSidePlaceholder, side)] = struct{}{}
	}
	return set
}

// ResolveBoneRegion はボーン名から身体領域を判定する。
func ResolveBoneRegion(boneName string) BoneRegion {
	switch {
	case containsBoneName(leftArmBoneNames, boneName):
		return BoneRegionLeftArm
	case containsBoneName(rightArmBoneNames, boneName):
		return BoneRegionRightArm
	case containsBoneName(leftLegBoneNames, boneName):
		return BoneRegionLeftLeg
	case containsBoneName(rightLegBoneNames, boneName):
		return BoneRegionRightLeg
	case containsBoneName(torsoBoneNames, boneName):
		return BoneRegionTorso
	case containsBoneName(headBoneNames, boneName):
		return BoneRegionHead
	default:
		return BoneRegionOther
	}
}

// containsBoneName は集合にボーン名が含まれるか判定する。
func containsBoneName(set map[string]struct{}, boneName string) bool {
	_, ok := set[boneName]
	return ok
}

// CoreWeightBoneNames はウェイト計算の既定対象(体幹・四肢・頭部)ボーン名集合を返す。
func CoreWeightBoneNames() map[string]struct{} {
	core := map[string]struct{}{}
	for _, set := range []map[string]struct{}{
		leftArmBoneNames,
		rightArmBoneNames,
		leftLegBoneNames,
		rightLegBoneNames,
		torsoBoneNames,
		headBoneNames,
	} {
		for name := range set {
			core[name] = struct{}{}
		}
	}
	return core
}

// LeftArmChainBoneNames は左腕チェーン(肩→手)のボーン名一覧を返す。
func LeftArmChainBoneNames() []string {
	return []string{SHOULDER.Left(), ARM.Left(), FORE_ARM.Left(), HAND.Left()}
}

// RightArmChainBoneNames は右腕チェーン(肩→手)のボーン名一覧を返す。
func RightArmChainBoneNames() []string {
	return []string{SHOULDER.Right(), ARM.Right(), FORE_ARM.Right(), HAND.Right()}
}

// LeftLegChainBoneNames は左脚チェーン(上脚→つま先)のボーン名一覧を返す。
func LeftLegChainBoneNames() []string {
	return []string{UP_LEG.Left(), LEG.Left(), FOOT.Left(), TOE_BASE.Left()}
}

// RightLegChainBoneNames は右脚チェーン(上脚→つま先)のボーン名一覧を返す。
func RightLegChainBoneNames() []string {
	return []string{UP_LEG.Right(), LEG.Right(), FOOT.Right(), TOE_BASE.Right()}
}
