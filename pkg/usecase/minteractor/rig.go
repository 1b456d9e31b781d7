// 指示: miu200521358
package minteractor

import (
	"fmt"
	"strings"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"golang.org/x/sync/errgroup"
)

// Rig は入力GLBへスケルトン構築とウェイト割当を行い、結果を出力GLBへ書き込む。
func (u *AutoRigUsecase) Rig(request *RigRequest) (*RigResult, error) {
	if u == nil || request == nil {
		return nil, fmt.Errorf("リグ生成リクエストが未設定です")
	}
	if err := u.validateRequest(request); err != nil {
		return nil, err
	}
	config, err := u.resolveConfig(request)
	if err != nil {
		return nil, err
	}
	config.ClampTunables()

	modelData, err := u.modelReader.Load(request.InputPath)
	if err != nil {
		return nil, fmt.Errorf("入力モデルの読み込みに失敗しました: %w", err)
	}
	if len(modelData.Parts) == 0 || modelData.TotalVertexCount() == 0 {
		return nil, fmt.Errorf("入力モデルにメッシュがありません: %s", request.InputPath)
	}
	height := modelData.Height()
	if height <= model.MinMeshHeight {
		return nil, fmt.Errorf("入力モデルの高さが小さすぎます: %.4f", height)
	}
	minPos, maxPos, ok := modelData.Bounds()
	if !ok {
		return nil, fmt.Errorf("入力モデルの境界取得に失敗しました: %s", request.InputPath)
	}
	frame := newMeshFrame(minPos, maxPos)
	logRigInfo("入力モデル読み込み: path=%s parts=%d vertices=%d height=%.4f",
		request.InputPath, len(modelData.Parts), modelData.TotalVertexCount(), height)

	skeleton, err := u.buildSkeleton(config, minPos, maxPos)
	if err != nil {
		return nil, err
	}
	if err := fitSkeletonToMesh(skeleton, minPos, maxPos); err != nil {
		return nil, fmt.Errorf("スケルトンのフィットに失敗しました: %w", err)
	}

	landmarks := analyzeSilhouette(modelData, config.SilhouetteBandCount)
	if landmarks == nil {
		logRigInfo("シルエットランドマークが検出できないため比率補正をスキップします")
	} else if config.ProportionalFit {
		adjustProportions(skeleton, landmarks)
	}
	ensureRequiredEndBones(skeleton, frame.Height)
	if err := skeleton.Validate(); err != nil {
		return nil, fmt.Errorf("スケルトンの検証に失敗しました: %w", err)
	}
	modelData.Skeleton = skeleton

	refs := config.AnatomyRefs()
	if config.CalibrateFromArmature {
		refs = calibrateAnatomyRefs(refs, skeleton, frame)
	}

	reports := make([]*PartWeightReport, len(modelData.Parts))
	eg := errgroup.Group{}
	for partIndex, part := range modelData.Parts {
		partIndex, part := partIndex, part
		eg.Go(func() error {
			reports[partIndex] = assignPartWeights(part, skeleton, config, refs, frame, u.heatSolver)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("ウェイト割当に失敗しました: %w", err)
	}

	if err := u.modelWriter.Save(request.OutputPath, modelData, request.SaveOptions); err != nil {
		return nil, fmt.Errorf("出力モデルの書き込みに失敗しました: %w", err)
	}
	logRigInfo("リグ生成完了: output=%s bones=%d", request.OutputPath, skeleton.Bones.Len())

	return &RigResult{
		Model:      modelData,
		OutputPath: request.OutputPath,
		Landmarks:  landmarks,
		Reports:    reports,
	}, nil
}

// resolveConfig はリクエストからリグ設定を決定する。
// Config指定が最優先、次にConfigPath読み込み、いずれもなければ既定値とする。
func (u *AutoRigUsecase) resolveConfig(request *RigRequest) (*model.RigConfig, error) {
	if request.Config != nil {
		return request.Config, nil
	}
	if strings.TrimSpace(request.ConfigPath) != "" {
		if u.configReader == nil {
			return nil, fmt.Errorf("設定読み込みの依存が未設定です")
		}
		config, err := u.configReader.Load(request.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("リグ設定の読み込みに失敗しました: %w", err)
		}
		return config, nil
	}
	return model.NewRigConfig(), nil
}

// validateRequest はリクエストの形式と依存を検証する。
func (u *AutoRigUsecase) validateRequest(request *RigRequest) error {
	if u.modelReader == nil || u.modelWriter == nil {
		return fmt.Errorf("モデル入出力の依存が未設定です")
	}
	if strings.TrimSpace(request.InputPath) == "" {
		return fmt.Errorf("入力パスが未設定です")
	}
	if strings.TrimSpace(request.OutputPath) == "" {
		return fmt.Errorf("出力パスが未設定です")
	}
	if !u.modelReader.CanLoad(request.InputPath) {
		return fmt.Errorf("入力パスの形式が未対応です: %s", request.InputPath)
	}
	if !u.modelWriter.CanSave(request.OutputPath) {
		return fmt.Errorf("出力パスの形式が未対応です: %s", request.OutputPath)
	}
	return nil
}

// buildSkeleton は設定に従いテンプレート取り込みまたは手続き生成でスケルトンを用意する。
// テンプレート失敗時は警告して手続き生成へフォールバックする。
func (u *AutoRigUsecase) buildSkeleton(config *model.RigConfig, minPos, maxPos mmath.Vec3) (*model.Skeleton, error) {
	if config.RigSource == model.RIG_SOURCE_TEMPLATE {
		skeleton, err := adaptTemplateSkeleton(u.modelReader, config.TemplatePath)
		if err == nil {
			return skeleton, nil
		}
		logRigWarn("テンプレート取り込みに失敗したため手続き生成へフォールバックします: %v", err)
	}
	skeleton, err := buildSyntheticSkeleton(config, minPos, maxPos)
	if err != nil {
		return nil, fmt.Errorf("スケルトンの生成に失敗しました: %w", err)
	}
	logRigInfo("手続き生成スケルトンを採用: bones=%d", skeleton.Bones.Len())
	return skeleton, nil
}
