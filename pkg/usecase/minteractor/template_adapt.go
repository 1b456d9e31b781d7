// 指示: miu200521358
package minteractor

import (
	"fmt"
	"strings"

	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/usecase/port/mrig"
)

// adaptTemplateSkeleton はテンプレートGLBからスケルトンを取り込む。
// 複数スケルトン候補がある場合はボーン数最大のものを採用する。
func adaptTemplateSkeleton(reader mrig.IFileReader, templatePath string) (*model.Skeleton, error) {
	if reader == nil {
		return nil, fmt.Errorf("テンプレート読み込みのリーダーが未設定です")
	}
	if strings.TrimSpace(templatePath) == "" {
		return nil, fmt.Errorf("テンプレートパスが未設定です")
	}
	if !reader.CanLoad(templatePath) {
		return nil, fmt.Errorf("テンプレートパスの形式が未対応です: %s", templatePath)
	}

	templateModel, err := reader.Load(templatePath)
	if err != nil {
		return nil, fmt.Errorf("テンプレートの読み込みに失敗しました: %w", err)
	}
	candidate := pickLargestSkeleton(templateModel.SkeletonCandidates)
	if candidate == nil {
		return nil, fmt.Errorf("テンプレートにスケルトンがありません: %s", templatePath)
	}

	skeleton := cloneSkeletonWithNames(candidate, normalizeTemplateBoneName)
	if err := skeleton.Validate(); err != nil {
		return nil, fmt.Errorf("テンプレートスケルトンの検証に失敗しました: %w", err)
	}
	logRigInfo("テンプレートスケルトンを採用: bones=%d path=%s", skeleton.Bones.Len(), templatePath)
	return skeleton, nil
}

// pickLargestSkeleton は候補からボーン数最大のスケルトンを返す。
func pickLargestSkeleton(candidates []*model.Skeleton) *model.Skeleton {
	var best *model.Skeleton
	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		if best == nil || candidate.Bones.Len() > best.Bones.Len() {
			best = candidate
		}
	}
	return best
}

// cloneSkeleton はスケルトンを複製する。名前は変更しない。
func cloneSkeleton(src *model.Skeleton) *model.Skeleton {
	return cloneSkeletonWithNames(src, func(name string) string { return name })
}

// cloneSkeletonWithNames は名前変換を適用しながらスケルトンを複製する。
func cloneSkeletonWithNames(src *model.Skeleton, rename func(string) string) *model.Skeleton {
	if src == nil {
		return nil
	}
	dst := model.NewSkeleton(src.Name())
	for _, bone := range src.Bones.Values() {
		cloned := model.NewBone(rename(bone.Name()), bone.Head, bone.Tail)
		cloned.ParentIndex = bone.ParentIndex
		if dst.Bones.AppendRaw(cloned) < 0 {
			logRigWarn("スケルトン複製で同名ボーンを除外しました: %s", cloned.Name())
		}
	}
	return dst
}

// normalizeTemplateBoneName はテンプレートボーン名を標準接頭辞付きへ正規化する。
// 接頭辞なしの標準名("Hips"等)には接頭辞を補い、それ以外はそのまま返す。
func normalizeTemplateBoneName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return name
	}
	if strings.HasPrefix(trimmed, model.BoneNamePrefix) {
		return trimmed
	}
	prefixed := model.BoneNamePrefix + trimmed
	if _, ok := standardBoneNameSet[prefixed]; ok {
		return prefixed
	}
	return trimmed
}

// standardBoneNameSet は接頭辞付き標準ボーン名の集合を保持する。
var standardBoneNameSet = model.CoreWeightBoneNames()
