// 指示: miu200521358
package minteractor

import (
	"math"

	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/tiendc/go-deepcopy"
)

const (
	// calibrateShoulderOuterMin は肩外端割合の下限を表す。
	calibrateShoulderOuterMin = 0.04
	// calibrateLegXMin は脚X割合の下限を表す。
	calibrateLegXMin = 0.02
	// calibrateHeightEpsilon は割合計算の分母下限を表す。
	calibrateHeightEpsilon = 1e-6
)

// calibrateAnatomyRefs はフィット済みスケルトンの実位置からウェイトゲート基準値を再計測する。
// 該当ボーンが見つからない項目は設定値のまま残す。元のrefsは変更しない。
func calibrateAnatomyRefs(refs *model.AnatomyRefs, skeleton *model.Skeleton, frame meshFrame) *model.AnatomyRefs {
	calibrated := &model.AnatomyRefs{}
	if err := deepcopy.Copy(calibrated, refs); err != nil {
		logRigWarn("基準値の複製に失敗したため設定値を使用します: %v", err)
		return refs
	}
	if skeleton == nil {
		return calibrated
	}

	height := math.Max(frame.Height, calibrateHeightEpsilon)
	heightFrac := func(z float64) float64 {
		return (z - frame.BottomZ) / height
	}

	if hips, ok := skeleton.Bones.GetByName(model.HIPS.String()); ok {
		calibrated.HipsHeightFrac = heightFrac(hips.Head.Z)
	}
	if spine, ok := skeleton.Bones.GetByName(model.SPINE.String()); ok {
		calibrated.SpineHeightFrac = heightFrac(spine.Head.Z)
	}
	if spine1, ok := skeleton.Bones.GetByName(model.SPINE1.String()); ok {
		calibrated.Spine1HeightFrac = heightFrac(spine1.Head.Z)
	}
	if neck, ok := skeleton.Bones.GetByName(model.NECK.String()); ok {
		calibrated.NeckHeightFrac = heightFrac(neck.Head.Z)
	}
	if shoulder, ok := skeleton.Bones.GetByName(model.SHOULDER.Left()); ok {
		calibrated.ShoulderHeightFrac = heightFrac(shoulder.Head.Z)
		calibrated.ShoulderOuterFrac = math.Max(
			math.Abs(shoulder.Head.X-frame.CenterX)/height, calibrateShoulderOuterMin)
	}
	if upLeg, ok := skeleton.Bones.GetByName(model.UP_LEG.Left()); ok {
		calibrated.LegXOffsetFrac = math.Max(
			math.Abs(upLeg.Head.X-frame.CenterX)/height, calibrateLegXMin)
	}

	logRigDebug("基準値キャリブレーション: hips=%.4f spine=%.4f spine1=%.4f neck=%.4f shoulderOuter=%.4f legX=%.4f",
		calibrated.HipsHeightFrac, calibrated.SpineHeightFrac, calibrated.Spine1HeightFrac,
		calibrated.NeckHeightFrac, calibrated.ShoulderOuterFrac, calibrated.LegXOffsetFrac)
	return calibrated
}
