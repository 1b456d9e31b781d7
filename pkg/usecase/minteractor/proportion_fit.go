// 指示: miu200521358
package minteractor

import (
	"fmt"
	"math"
	"strings"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

const (
	// proportionScaleMin は比率補正スケールの下限を表す。
	proportionScaleMin = 0.3
	// proportionScaleMax は比率補正スケールの上限を表す。
	proportionScaleMax = 5.0
	// proportionSkipBand は補正不要とみなすスケール偏差を表す。
	proportionSkipBand = 0.02
	// proportionExtentEpsilon はスケール分母の下限を表す。
	proportionExtentEpsilon = 0.001
	// fitHeightEpsilon はスケール分母となるスケルトン高さの下限を表す。
	fitHeightEpsilon = 1e-6
)

// fitSkeletonToMesh はスケルトン全体をメッシュ境界へ一様スケール・平行移動で合わせる。
// 高さをメッシュ全高に一致させ、中心XYと底面Zを揃える。
func fitSkeletonToMesh(skeleton *model.Skeleton, minPos, maxPos mmath.Vec3) error {
	if skeleton == nil || skeleton.Bones.Len() == 0 {
		return fmt.Errorf("フィット対象のスケルトンがありません")
	}
	frame := newMeshFrame(minPos, maxPos)

	rigHeight := skeleton.Height()
	scale := frame.Height / math.Max(rigHeight, fitHeightEpsilon)
	for _, bone := range skeleton.Bones.Values() {
		bone.Head = bone.Head.MuledScalar(scale)
		bone.Tail = bone.Tail.MuledScalar(scale)
	}

	rigMin, rigMax, ok := skeleton.Bounds()
	if !ok {
		return fmt.Errorf("スケルトン境界の取得に失敗しました")
	}
	offset := mmath.NewVec3(
		frame.CenterX-(rigMin.X+rigMax.X)/2.0,
		frame.CenterY-(rigMin.Y+rigMax.Y)/2.0,
		frame.BottomZ-rigMin.Z,
	)
	for _, bone := range skeleton.Bones.Values() {
		bone.Head = bone.Head.Added(offset)
		bone.Tail = bone.Tail.Added(offset)
	}
	logRigDebug("スケルトンフィット: scale=%.4f offset=(%.4f, %.4f, %.4f)", scale, offset.X, offset.Y, offset.Z)
	return nil
}

// adjustProportions はシルエットランドマークに合わせて腕と脚のX方向比率を補正する。
// 補正量は左右平均の1スケールずつで、背骨中心を支点にX座標のみ伸縮する。
func adjustProportions(skeleton *model.Skeleton, landmarks *SilhouetteLandmarks) {
	if skeleton == nil || landmarks == nil {
		return
	}
	spine2, okSpine := skeleton.Bones.GetByName(model.SPINE2.String())
	leftHand, okLeft := skeleton.Bones.GetByName(model.HAND.Left())
	rightHand, okRight := skeleton.Bones.GetByName(model.HAND.Right())
	if !okSpine || !okLeft || !okRight {
		logRigWarn("比率補正に必要なボーンが不足しているためスキップします")
		return
	}
	spineCenterX := spine2.Head.X
	meshCenterX := landmarks.MeshCenterX

	leftScale := math.Abs(landmarks.ArmTipLeftX-meshCenterX) /
		math.Max(math.Abs(leftHand.Tail.X-spineCenterX), proportionExtentEpsilon)
	rightScale := math.Abs(landmarks.ArmTipRightX-meshCenterX) /
		math.Max(math.Abs(rightHand.Tail.X-spineCenterX), proportionExtentEpsilon)
	armScale := mmath.Clamp((leftScale+rightScale)/2.0, proportionScaleMin, proportionScaleMax)

	hipScale := 1.0
	if leftUpLeg, ok := skeleton.Bones.GetByName(model.UP_LEG.Left()); ok {
		skeletonHipHalf := math.Abs(leftUpLeg.Head.X - spineCenterX)
		if skeletonHipHalf > proportionExtentEpsilon && landmarks.HipHalfWidth > proportionExtentEpsilon {
			hipScale = mmath.Clamp(landmarks.HipHalfWidth/skeletonHipHalf, proportionScaleMin, proportionScaleMax)
		}
	}

	if math.Abs(armScale-1.0) < proportionSkipBand && math.Abs(hipScale-1.0) < proportionSkipBand {
		logRigDebug("比率補正: 偏差が小さいためスキップ arm=%.4f hip=%.4f", armScale, hipScale)
		return
	}

	armBoneNames := appendHandChildBoneNames(skeleton,
		append(model.LeftArmChainBoneNames(), model.RightArmChainBoneNames()...))
	legBoneNames := append(model.LeftLegChainBoneNames(), model.RightLegChainBoneNames()...)
	scaleBonesX(skeleton, armBoneNames, spineCenterX, armScale)
	scaleBonesX(skeleton, legBoneNames, spineCenterX, hipScale)
	logRigInfo("比率補正を適用: armScale=%.4f hipScale=%.4f", armScale, hipScale)
}

// appendHandChildBoneNames は手以下(指など)のボーン名を補正対象へ追加する。
func appendHandChildBoneNames(skeleton *model.Skeleton, names []string) []string {
	registered := map[string]struct{}{}
	for _, name := range names {
		registered[name] = struct{}{}
	}
	for _, bone := range skeleton.Bones.Values() {
		name := bone.Name()
		if _, exists := registered[name]; exists {
			continue
		}
		if strings.HasPrefix(name, model.HAND.Left()) || strings.HasPrefix(name, model.HAND.Right()) {
			names = append(names, name)
			registered[name] = struct{}{}
		}
	}
	return names
}

// scaleBonesX は指定ボーンのX座標を支点中心に伸縮する。
func scaleBonesX(skeleton *model.Skeleton, boneNames []string, pivotX, scale float64) {
	for _, name := range boneNames {
		bone, ok := skeleton.Bones.GetByName(name)
		if !ok {
			continue
		}
		bone.Head.X = pivotX + (bone.Head.X-pivotX)*scale
		bone.Tail.X = pivotX + (bone.Tail.X-pivotX)*scale
	}
}
