// 指示: miu200521358
package minteractor

import (
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/usecase/port/mrig"
)

// RigRequest はリグ生成の入力を表す。
type RigRequest struct {
	// InputPath は入力GLBパスを表す。
	InputPath string
	// OutputPath は出力GLBパスを表す。
	OutputPath string
	// ConfigPath はリグ設定JSONパスを表す。空の場合は既定値を使用する。
	ConfigPath string
	// Config はリグ設定を表す。指定時はConfigPathより優先する。
	Config *model.RigConfig
	// SaveOptions は保存オプションを表す。
	SaveOptions mrig.SaveOptions
}

// WeightAttempt はメッシュ1つに対するウェイト計算の1試行を表す。
type WeightAttempt struct {
	// Method は試行した手法("bone_heat"/"distance"等)を表す。
	Method string
	// Cleaned はクリーニング済みメッシュへの試行か表す。
	Cleaned bool
	// WeightedBones は非空ウェイトを持つボーン数を表す。
	WeightedBones int
	// Err は試行が失敗した場合のエラーを表す。
	Err error
}

// PartWeightReport はメッシュ1つのウェイト割当結果を表す。
type PartWeightReport struct {
	// PartName はメッシュ名を表す。
	PartName string
	// Method は最終的に採用した手法を表す。
	Method string
	// Attempts は試行履歴を表す。
	Attempts []WeightAttempt
	// WeightedBones は非空ウェイトを持つボーン数を表す。
	WeightedBones int
	// MaxInfluences は頂点あたり最大影響ボーン数を表す。
	MaxInfluences int
}

// RigResult はリグ生成の結果を表す。
type RigResult struct {
	// Model はリグ付与済みモデルを表す。
	Model *model.RigModel
	// OutputPath は書き込んだ出力パスを表す。
	OutputPath string
	// Landmarks はシルエット解析結果を表す。検出不能の場合はnil。
	Landmarks *SilhouetteLandmarks
	// Reports はメッシュごとのウェイト割当結果を表す。
	Reports []*PartWeightReport
}
