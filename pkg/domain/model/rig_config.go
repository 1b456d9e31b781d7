// 指示: miu200521358
package model

import "math"

// SkinningMethod はスキニング方式を表す。
type SkinningMethod string

const (
	// SKINNING_METHOD_BONE_HEAT は外部ヒートソルバ委譲方式を表す。
	SKINNING_METHOD_BONE_HEAT SkinningMethod = "bone_heat"
	// SKINNING_METHOD_DISTANCE は距離ベース方式を表す。
	SKINNING_METHOD_DISTANCE SkinningMethod = "distance"
)

// RigSource はスケルトンの取得元を表す。
type RigSource string

const (
	// RIG_SOURCE_TEMPLATE はテンプレート資産からの取り込みを表す。
	RIG_SOURCE_TEMPLATE RigSource = "template"
	// RIG_SOURCE_SYNTHETIC は比率定数からの手続き生成を表す。
	RIG_SOURCE_SYNTHETIC RigSource = "synthetic"
)

// WeightBoneScope は距離ウェイト対象ボーン範囲を表す。
type WeightBoneScope string

const (
	// WEIGHT_BONE_SCOPE_CORE は体幹・四肢・頭部の既定範囲を表す。
	WEIGHT_BONE_SCOPE_CORE WeightBoneScope = "core"
	// WEIGHT_BONE_SCOPE_ALL は全ボーン範囲を表す。
	WEIGHT_BONE_SCOPE_ALL WeightBoneScope = "all"
)

const (
	// MinMeshHeight は処理続行に必要な最小メッシュ高さを表す。
	MinMeshHeight = 0.01
	// WeightInfluenceMin はweight_top_n/max_influencesの下限を表す。
	WeightInfluenceMin = 1
	// WeightInfluenceMax はweight_top_n/max_influencesの上限を表す。
	WeightInfluenceMax = 8
	// WeightFalloffMin はweight_falloff_strengthの下限を表す。
	WeightFalloffMin = 0.1
)

// RigConfig はリグ生成の全設定を表す。
// 各フィールドの既定値はNewRigConfigに集約する。
type RigConfig struct {
	// 比率定数(総高さに対する割合)
	HipsHeightFrac     float64
	SpineHeightFrac    float64
	Spine1HeightFrac   float64
	Spine2HeightFrac   float64
	NeckHeightFrac     float64
	HeadHeightFrac     float64
	HeadTopHeightFrac  float64
	HeadEndHeightFrac  float64
	ShoulderHeightFrac float64
	ShoulderInnerFrac  float64
	ShoulderOuterFrac  float64
	UpperArmEndFrac    float64
	ForeArmEndFrac     float64
	HandEndFrac        float64
	LegXOffsetFrac     float64
	UpperLegEndFrac    float64
	LowerLegEndFrac    float64
	FootForwardFrac    float64
	FootHeightFrac     float64
	ToeForwardFrac     float64
	ToeHeightFrac      float64

	// ウェイト計算の調整値
	WeightTopN         int
	WeightFalloff      float64
	MinWeightThreshold float64
	MaxInfluences      int

	// 方式選択
	SkinningMethod  SkinningMethod
	RigSource       RigSource
	WeightBoneScope WeightBoneScope

	// 真偽トグル
	UseAnatomyGates       bool
	CalibrateFromArmature bool
	ProportionalFit       bool

	// 分析パラメータ
	SilhouetteBandCount int

	// 外部コラボレータ
	TemplatePath      string
	HeatSolverCommand string
}

// NewRigConfig は既定値のRigConfigを生成する。
func NewRigConfig() *RigConfig {
	return &RigConfig{
		HipsHeightFrac:     0.48,
		SpineHeightFrac:    0.52,
		Spine1HeightFrac:   0.58,
		Spine2HeightFrac:   0.64,
		NeckHeightFrac:     0.72,
		HeadHeightFrac:     0.78,
		HeadTopHeightFrac:  0.95,
		HeadEndHeightFrac:  1.0,
		ShoulderHeightFrac: 0.72,
		ShoulderInnerFrac:  0.02,
		ShoulderOuterFrac:  0.08,
		UpperArmEndFrac:    0.20,
		ForeArmEndFrac:     0.32,
		HandEndFrac:        0.37,
		LegXOffsetFrac:     0.06,
		UpperLegEndFrac:    0.27,
		LowerLegEndFrac:    0.06,
		FootForwardFrac:    0.06,
		FootHeightFrac:     0.02,
		ToeForwardFrac:     0.10,
		ToeHeightFrac:      0.0,

		WeightTopN:         4,
		WeightFalloff:      2.0,
		MinWeightThreshold: 0.01,
		MaxInfluences:      4,

		SkinningMethod:  SKINNING_METHOD_DISTANCE,
		RigSource:       RIG_SOURCE_TEMPLATE,
		WeightBoneScope: WEIGHT_BONE_SCOPE_CORE,

		UseAnatomyGates:       true,
		CalibrateFromArmature: true,
		ProportionalFit:       true,

		SilhouetteBandCount: 100,
	}
}

// ClampTunables は調整値を許容範囲へ丸める。
func (c *RigConfig) ClampTunables() {
	if c == nil {
		return
	}
	c.WeightTopN = clampInt(c.WeightTopN, WeightInfluenceMin, WeightInfluenceMax)
	c.MaxInfluences = clampInt(c.MaxInfluences, WeightInfluenceMin, WeightInfluenceMax)
	c.WeightFalloff = math.Max(c.WeightFalloff, WeightFalloffMin)
	c.MinWeightThreshold = math.Max(c.MinWeightThreshold, 0.0)
	if c.SilhouetteBandCount < 1 {
		c.SilhouetteBandCount = 100
	}
}

// AnatomyRefs はウェイトゲートが参照する解剖学的基準値を返す。
func (c *RigConfig) AnatomyRefs() *AnatomyRefs {
	return &AnatomyRefs{
		HipsHeightFrac:     c.HipsHeightFrac,
		SpineHeightFrac:    c.SpineHeightFrac,
		Spine1HeightFrac:   c.Spine1HeightFrac,
		NeckHeightFrac:     c.NeckHeightFrac,
		ShoulderHeightFrac: c.ShoulderHeightFrac,
		ShoulderOuterFrac:  c.ShoulderOuterFrac,
		LegXOffsetFrac:     c.LegXOffsetFrac,
	}
}

// AnatomyRefs はウェイトゲートの高さ・横幅基準を表す。
// フィット済みスケルトンからの再計測(キャリブレーション)で上書きされる。
type AnatomyRefs struct {
	HipsHeightFrac     float64
	SpineHeightFrac    float64
	Spine1HeightFrac   float64
	NeckHeightFrac     float64
	ShoulderHeightFrac float64
	ShoulderOuterFrac  float64
	LegXOffsetFrac     float64
}

// clampInt はmin-maxで整数をクランプする。
func clampInt(value int, min int, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
