// 指示: miu200521358
package minteractor

import (
	"fmt"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

const (
	// syntheticSkeletonName は手続き生成スケルトンの名前を表す。
	syntheticSkeletonName = "Armature"
	// endBoneAxisEpsilon は末端ボーン軸の退化判定閾値を表す。
	endBoneAxisEpsilon = 1e-6
	// endBoneLengthFrac は末端ボーン長の全高比率を表す。
	endBoneLengthFrac = 0.03
	// endBoneAxisKeepRatio は元軸の長さを引き継ぐ比率を表す。
	endBoneAxisKeepRatio = 0.3
)

// meshFrame はメッシュ境界から求めた配置基準を表す。
// 中心XY・底面Z・全高をスケルトン配置の座標系として使う。
type meshFrame struct {
	CenterX float64
	CenterY float64
	BottomZ float64
	Height  float64
}

// newMeshFrame はメッシュ境界から配置基準を構築する。
func newMeshFrame(minPos, maxPos mmath.Vec3) meshFrame {
	return meshFrame{
		CenterX: (minPos.X + maxPos.X) / 2.0,
		CenterY: (minPos.Y + maxPos.Y) / 2.0,
		BottomZ: minPos.Z,
		Height:  maxPos.Z - minPos.Z,
	}
}

// pos は正規化オフセット(全高比)からワールド座標を返す。
// xOffset/yOffsetは中心からの割合、heightFracは底面からの高さ割合とする。
func (f meshFrame) pos(xOffset, yOffset, heightFrac float64) mmath.Vec3 {
	return mmath.NewVec3(
		f.CenterX+xOffset*f.Height,
		f.CenterY+yOffset*f.Height,
		f.BottomZ+heightFrac*f.Height,
	)
}

// syntheticBoneDef は手続き生成ボーン1本の定義を表す。
type syntheticBoneDef struct {
	Name   string
	Head   mmath.Vec3
	Tail   mmath.Vec3
	Parent string
}

// buildSyntheticSkeleton は比率定数からヒューマノイドスケルトンを生成する。
// +XをモデルのLeft側、+Yを前方、+Zを上方向とするTポーズで配置する。
func buildSyntheticSkeleton(config *model.RigConfig, minPos, maxPos mmath.Vec3) (*model.Skeleton, error) {
	if config == nil {
		return nil, fmt.Errorf("リグ設定が未設定です")
	}
	frame := newMeshFrame(minPos, maxPos)
	if frame.Height < model.MinMeshHeight {
		return nil, fmt.Errorf("スケルトン生成に必要な高さがありません: %.4f", frame.Height)
	}

	defs := syntheticBoneDefs(config, frame)
	skeleton := model.NewSkeleton(syntheticSkeletonName)
	for _, def := range defs {
		bone := model.NewBone(def.Name, def.Head, def.Tail)
		if def.Parent != "" {
			parent, ok := skeleton.Bones.GetByName(def.Parent)
			if !ok {
				return nil, fmt.Errorf("親ボーンが未登録です: %s (child=%s)", def.Parent, def.Name)
			}
			bone.ParentIndex = parent.Index()
		}
		if skeleton.Bones.AppendRaw(bone) < 0 {
			return nil, fmt.Errorf("ボーンの登録に失敗しました: %s", def.Name)
		}
	}
	if err := skeleton.Validate(); err != nil {
		return nil, fmt.Errorf("生成スケルトンの検証に失敗しました: %w", err)
	}
	return skeleton, nil
}

// syntheticBoneDefs は比率定数から全ボーン定義を構築する。
func syntheticBoneDefs(c *model.RigConfig, f meshFrame) []syntheticBoneDef {
	defs := []syntheticBoneDef{
		{model.HIPS.String(), f.pos(0, 0, c.HipsHeightFrac), f.pos(0, 0, c.SpineHeightFrac), ""},
		{model.SPINE.String(), f.pos(0, 0, c.SpineHeightFrac), f.pos(0, 0, c.Spine1HeightFrac), model.HIPS.String()},
		{model.SPINE1.String(), f.pos(0, 0, c.Spine1HeightFrac), f.pos(0, 0, c.Spine2HeightFrac), model.SPINE.String()},
		{model.SPINE2.String(), f.pos(0, 0, c.Spine2HeightFrac), f.pos(0, 0, c.NeckHeightFrac), model.SPINE1.String()},
		{model.NECK.String(), f.pos(0, 0, c.NeckHeightFrac), f.pos(0, 0, c.HeadHeightFrac), model.SPINE2.String()},
		{model.HEAD.String(), f.pos(0, 0, c.HeadHeightFrac), f.pos(0, 0, c.HeadTopHeightFrac), model.NECK.String()},
		{model.HEAD_TOP_END.String(), f.pos(0, 0, c.HeadTopHeightFrac), f.pos(0, 0, c.HeadEndHeightFrac), model.HEAD.String()},
	}
	for _, side := range []struct {
		Sign     float64
		Shoulder string
		Arm      string
		ForeArm  string
		Hand     string
		UpLeg    string
		Leg      string
		Foot     string
		ToeBase  string
	}{
		{1.0, model.SHOULDER.Left(), model.ARM.Left(), model.FORE_ARM.Left(), model.HAND.Left(),
			model.UP_LEG.Left(), model.LEG.Left(), model.FOOT.Left(), model.TOE_BASE.Left()},
		{-1.0, model.SHOULDER.Right(), model.ARM.Right(), model.FORE_ARM.Right(), model.HAND.Right(),
			model.UP_LEG.Right(), model.LEG.Right(), model.FOOT.Right(), model.TOE_BASE.Right()},
	} {
		s := side.Sign
		defs = append(defs,
			syntheticBoneDef{side.Shoulder,
				f.pos(s*c.ShoulderInnerFrac, 0, c.ShoulderHeightFrac),
				f.pos(s*c.ShoulderOuterFrac, 0, c.ShoulderHeightFrac), model.SPINE2.String()},
			syntheticBoneDef{side.Arm,
				f.pos(s*c.ShoulderOuterFrac, 0, c.ShoulderHeightFrac),
				f.pos(s*c.UpperArmEndFrac, 0, c.ShoulderHeightFrac), side.Shoulder},
			syntheticBoneDef{side.ForeArm,
				f.pos(s*c.UpperArmEndFrac, 0, c.ShoulderHeightFrac),
				f.pos(s*c.ForeArmEndFrac, 0, c.ShoulderHeightFrac), side.Arm},
			syntheticBoneDef{side.Hand,
				f.pos(s*c.ForeArmEndFrac, 0, c.ShoulderHeightFrac),
				f.pos(s*c.HandEndFrac, 0, c.ShoulderHeightFrac), side.ForeArm},
			syntheticBoneDef{side.UpLeg,
				f.pos(s*c.LegXOffsetFrac, 0, c.HipsHeightFrac),
				f.pos(s*c.LegXOffsetFrac, 0, c.UpperLegEndFrac), model.HIPS.String()},
			syntheticBoneDef{side.Leg,
				f.pos(s*c.LegXOffsetFrac, 0, c.UpperLegEndFrac),
				f.pos(s*c.LegXOffsetFrac, 0, c.LowerLegEndFrac), side.UpLeg},
			syntheticBoneDef{side.Foot,
				f.pos(s*c.LegXOffsetFrac, 0, c.LowerLegEndFrac),
				f.pos(s*c.LegXOffsetFrac, c.FootForwardFrac, c.FootHeightFrac), side.Leg},
			syntheticBoneDef{side.ToeBase,
				f.pos(s*c.LegXOffsetFrac, c.FootForwardFrac, c.FootHeightFrac),
				f.pos(s*c.LegXOffsetFrac, c.ToeForwardFrac, c.ToeHeightFrac), side.Foot},
		)
	}
	return defs
}

// ensureRequiredEndBones は頭頂末端ボーンの欠落を補完する。
// 既に存在する場合やHeadがない場合は何もしない。
func ensureRequiredEndBones(skeleton *model.Skeleton, meshHeight float64) {
	if skeleton == nil || skeleton.Bones.ContainsName(model.HEAD_TOP_END.String()) {
		return
	}
	headBone, ok := skeleton.Bones.GetByName(model.HEAD.String())
	if !ok {
		return
	}

	head := headBone.Tail
	axis := headBone.Axis()
	axisLength := axis.Length()
	minLength := meshHeight * endBoneLengthFrac
	if axisLength < endBoneAxisEpsilon {
		fallback := minLength
		if fallback < endBoneLengthFrac {
			fallback = endBoneLengthFrac
		}
		axis = mmath.NewVec3(0, 0, fallback)
	} else {
		length := axisLength * endBoneAxisKeepRatio
		if length < minLength {
			length = minLength
		}
		axis = axis.Normalized().MuledScalar(length)
	}

	endBone := model.NewBone(model.HEAD_TOP_END.String(), head, head.Added(axis))
	endBone.ParentIndex = headBone.Index()
	if skeleton.Bones.AppendRaw(endBone) < 0 {
		logRigWarn("頭頂末端ボーンの追加に失敗しました: %s", model.HEAD_TOP_END.String())
		return
	}
	logRigInfo("頭頂末端ボーンを補完しました: %s", model.HEAD_TOP_END.String())
}
