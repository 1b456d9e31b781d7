// 指示: miu200521358
package mrig

import "github.com/miu200521358/mu_autorig/pkg/domain/model"

// SaveOptions は保存時のオプションを表す。
type SaveOptions struct {
	// KeepAnimations は入力GLBのanimations要素を保持するか指定する。
	// 既定(false)ではリグ付与結果と矛盾するため除去する。
	KeepAnimations bool
}

// IFileReader はモデル入力の読み込み契約を表す。
type IFileReader interface {
	CanLoad(path string) bool
	Load(path string) (*model.RigModel, error)
}

// IFileWriter はリグ付与結果の書き込み契約を表す。
type IFileWriter interface {
	CanSave(path string) bool
	Save(path string, modelData *model.RigModel, options SaveOptions) error
}

// IHeatWeightSolver は外部ヒートソルバへのウェイト計算委譲契約を表す。
// ソルバ未設定・起動失敗・解析失敗はエラーで返し、呼び出し側がフォールバックを判断する。
type IHeatWeightSolver interface {
	Solve(part *model.MeshPart, skeleton *model.Skeleton) (model.VertexWeights, error)
}

// IConfigReader はリグ設定の読み込み契約を表す。
type IConfigReader interface {
	Load(path string) (*model.RigConfig, error)
}
