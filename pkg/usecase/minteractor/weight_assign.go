// 指示: miu200521358
package minteractor

import (
	"math"
	"sort"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/usecase/port/mrig"
)

const (
	// weightMethodBoneHeat は外部ヒートソルバ方式のレポート名を表す。
	weightMethodBoneHeat = "bone_heat"
	// weightMethodDistance は距離方式のレポート名を表す。
	weightMethodDistance = "distance"
	// weightMethodDistanceFallback はヒート失敗後の距離方式のレポート名を表す。
	weightMethodDistanceFallback = "distance_fallback"

	// weightDistanceFloor は最近傍距離の分母下限を表す。
	weightDistanceFloor = 0.001
	// weightTotalEpsilon は正規化分母の下限を表す。
	weightTotalEpsilon = 1e-9
)

// weightCandidate は頂点1つに対するボーン候補を表す。
type weightCandidate struct {
	BoneName string
	Distance float64
	Gate     float64
}

// assignPartWeights はメッシュ1つへウェイトを割り当て、結果レポートを返す。
// ヒート方式は空結果・失敗時にクリーニング再試行と距離方式フォールバックを行う。
func assignPartWeights(
	part *model.MeshPart,
	skeleton *model.Skeleton,
	config *model.RigConfig,
	refs *model.AnatomyRefs,
	frame meshFrame,
	heatSolver mrig.IHeatWeightSolver,
) *PartWeightReport {
	report := &PartWeightReport{PartName: part.Name}

	weights := model.VertexWeights(nil)
	if config.SkinningMethod == model.SKINNING_METHOD_BONE_HEAT {
		weights = solveHeatWeights(part, skeleton, heatSolver, report)
	}
	if weights == nil {
		if report.Method == "" {
			report.Method = weightMethodDistance
		}
		weights = assignDistanceWeights(part, skeleton, config, refs, frame)
		report.Attempts = append(report.Attempts, WeightAttempt{
			Method:        report.Method,
			WeightedBones: weights.WeightedBoneCount(),
		})
	}

	clampVertexInfluences(weights, config.MaxInfluences)
	part.Weights = weights
	report.WeightedBones = weights.WeightedBoneCount()
	report.MaxInfluences = weights.MaxInfluenceCount()
	logRigInfo("ウェイト割当: part=%s method=%s weightedBones=%d maxInfluences=%d",
		report.PartName, report.Method, report.WeightedBones, report.MaxInfluences)
	return report
}

// solveHeatWeights は外部ヒートソルバによるウェイト計算を試行する。
// 採用できない場合はnilを返し、reportへフォールバック方式を記録する。
func solveHeatWeights(
	part *model.MeshPart,
	skeleton *model.Skeleton,
	heatSolver mrig.IHeatWeightSolver,
	report *PartWeightReport,
) model.VertexWeights {
	if heatSolver == nil {
		logRigWarn("ヒートソルバ未設定のため距離方式へフォールバックします: part=%s", part.Name)
		report.Method = weightMethodDistance
		return nil
	}

	weights, err := heatSolver.Solve(part, skeleton)
	if err != nil {
		logRigWarn("ヒートソルバが失敗したため距離方式へフォールバックします: part=%s err=%v", part.Name, err)
		report.Attempts = append(report.Attempts, WeightAttempt{Method: weightMethodBoneHeat, Err: err})
		report.Method = weightMethodDistance
		return nil
	}
	weighted := weights.WeightedBoneCount()
	report.Attempts = append(report.Attempts, WeightAttempt{Method: weightMethodBoneHeat, WeightedBones: weighted})
	if weighted > 0 {
		report.Method = weightMethodBoneHeat
		return weights
	}

	// 空結果は位相不良の可能性があるため、クリーニング済みメッシュで再試行する
	logRigWarn("ヒートソルバ結果が空のためクリーニング再試行します: part=%s", part.Name)
	cleaned := cleanupMeshPart(part)
	if cleaned != nil && cleaned.Part.VertexCount() > 0 {
		cleanedWeights, retryErr := heatSolver.Solve(cleaned.Part, skeleton)
		if retryErr != nil {
			logRigWarn("クリーニング再試行が失敗しました: part=%s err=%v", part.Name, retryErr)
			report.Attempts = append(report.Attempts, WeightAttempt{
				Method:  weightMethodBoneHeat,
				Cleaned: true,
				Err:     retryErr,
			})
			report.Method = weightMethodDistance
			return nil
		}
		expanded := expandCleanedWeights(cleaned, cleanedWeights)
		weighted = expanded.WeightedBoneCount()
		report.Attempts = append(report.Attempts, WeightAttempt{
			Method:        weightMethodBoneHeat,
			Cleaned:       true,
			WeightedBones: weighted,
		})
		if weighted > 0 {
			report.Method = weightMethodBoneHeat
			return expanded
		}
	}

	logRigWarn("ヒートソルバ結果が空のままのため距離方式へフォールバックします: part=%s", part.Name)
	report.Method = weightMethodDistanceFallback
	return nil
}

// assignDistanceWeights はボーン線分への距離とゲートから全頂点のウェイトを計算する。
func assignDistanceWeights(
	part *model.MeshPart,
	skeleton *model.Skeleton,
	config *model.RigConfig,
	refs *model.AnatomyRefs,
	frame meshFrame,
) model.VertexWeights {
	bones := candidateWeightBones(skeleton, config.WeightBoneScope)
	height := math.Max(frame.Height, fitHeightEpsilon)
	weights := model.NewVertexWeights(part.VertexCount())

	for vertexIndex, position := range part.Positions {
		xNorm := (position.X - frame.CenterX) / height
		zNorm := (position.Z - frame.BottomZ) / height

		candidates := make([]weightCandidate, 0, len(bones))
		for _, bone := range bones {
			gate := 1.0
			if config.UseAnatomyGates {
				gate = anatomyGate(bone.Name(), xNorm, zNorm, refs)
			}
			if gate <= 0 {
				continue
			}
			candidates = append(candidates, weightCandidate{
				BoneName: bone.Name(),
				Distance: mmath.DistanceToSegment(position, bone.Head, bone.Tail),
				Gate:     gate,
			})
		}
		// 全ボーンがゲートで除外された場合はゲートなしで割り当てる
		if len(candidates) == 0 {
			for _, bone := range bones {
				candidates = append(candidates, weightCandidate{
					BoneName: bone.Name(),
					Distance: mmath.DistanceToSegment(position, bone.Head, bone.Tail),
					Gate:     1.0,
				})
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Distance < candidates[j].Distance
		})

		topN := config.WeightTopN
		if topN > len(candidates) {
			topN = len(candidates)
		}
		if topN < 1 {
			topN = 1
		}
		top := candidates[:topN]

		minDistance := math.Max(top[0].Distance, weightDistanceFloor)
		rawWeights := make([]float64, len(top))
		total := 0.0
		for i, candidate := range top {
			ratio := candidate.Distance/minDistance - 1.0
			rawWeights[i] = math.Exp(-ratio*ratio*config.WeightFalloff) * candidate.Gate
			total += rawWeights[i]
		}

		if total < weightTotalEpsilon {
			weights[vertexIndex] = []model.BoneWeight{{BoneName: top[0].BoneName, Weight: 1.0}}
			continue
		}
		row := make([]model.BoneWeight, 0, len(top))
		for i, candidate := range top {
			normalized := rawWeights[i] / total
			if normalized > config.MinWeightThreshold {
				row = append(row, model.BoneWeight{BoneName: candidate.BoneName, Weight: normalized})
			}
		}
		weights[vertexIndex] = row
	}
	return weights
}

// candidateWeightBones はウェイト対象ボーン一覧を返す。
// core範囲指定で該当ボーンがない場合は全ボーンへ広げる。
func candidateWeightBones(skeleton *model.Skeleton, scope model.WeightBoneScope) []*model.Bone {
	all := skeleton.Bones.Values()
	if scope == model.WEIGHT_BONE_SCOPE_ALL {
		return all
	}
	coreNames := model.CoreWeightBoneNames()
	core := make([]*model.Bone, 0, len(all))
	for _, bone := range all {
		if _, ok := coreNames[bone.Name()]; ok {
			core = append(core, bone)
		}
	}
	if len(core) == 0 {
		return all
	}
	return core
}

// clampVertexInfluences は頂点あたりの影響ボーン数を制限し、残った重みを正規化する。
func clampVertexInfluences(weights model.VertexWeights, maxInfluences int) {
	if maxInfluences < 1 {
		maxInfluences = 1
	}
	for vertexIndex, row := range weights {
		if len(row) == 0 {
			continue
		}
		sort.SliceStable(row, func(i, j int) bool {
			return row[i].Weight > row[j].Weight
		})
		if len(row) > maxInfluences {
			row = row[:maxInfluences]
		}
		total := 0.0
		for _, influence := range row {
			total += influence.Weight
		}
		if total < weightTotalEpsilon {
			continue
		}
		for i := range row {
			row[i].Weight /= total
		}
		weights[vertexIndex] = row
	}
}
