// 指示: miu200521358
package minteractor

import (
	"fmt"
	"math"
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

// fakeHeatSolver は外部ソルバ呼び出しを差し替えるテスト用ソルバを表す。
type fakeHeatSolver struct {
	solveFunc func(part *model.MeshPart, skeleton *model.Skeleton) (model.VertexWeights, error)
	calls     int
}

func (s *fakeHeatSolver) Solve(part *model.MeshPart, skeleton *model.Skeleton) (model.VertexWeights, error) {
	s.calls++
	return s.solveFunc(part, skeleton)
}

// buildWeightSkeleton は垂直に並んだ2ボーンのスケルトンを返す。
func buildWeightSkeleton(t *testing.T) *model.Skeleton {
	t.Helper()
	skeleton := model.NewSkeleton("test")
	lower := model.NewBone(model.HIPS.String(), mmath.NewVec3(0, 0, 0), mmath.NewVec3(0, 0, 1))
	skeleton.Bones.AppendRaw(lower)
	upper := model.NewBone(model.SPINE.String(), mmath.NewVec3(0, 0, 1), mmath.NewVec3(0, 0, 2))
	upper.ParentIndex = lower.Index()
	skeleton.Bones.AppendRaw(upper)
	return skeleton
}

// buildWeightPart は下端と上端に頂点を持つメッシュを返す。
func buildWeightPart() *model.MeshPart {
	return &model.MeshPart{
		Name: "body",
		Positions: []mmath.Vec3{
			mmath.NewVec3(0, 0, 0.2),
			mmath.NewVec3(0, 0, 1.8),
		},
		Faces: [][3]int{},
	}
}

// distanceWeightConfig はゲート無効・全ボーン対象の距離方式設定を返す。
func distanceWeightConfig() *model.RigConfig {
	config := model.NewRigConfig()
	config.SkinningMethod = model.SKINNING_METHOD_DISTANCE
	config.WeightBoneScope = model.WEIGHT_BONE_SCOPE_ALL
	config.UseAnatomyGates = false
	return config
}

func weightFrame() meshFrame {
	return meshFrame{CenterX: 0, CenterY: 0, BottomZ: 0, Height: 2}
}

// assertWeightSums は全頂点のウェイト合計が1であることを検証する。
func assertWeightSums(t *testing.T, weights model.VertexWeights) {
	t.Helper()
	for vertexIndex, row := range weights {
		if len(row) == 0 {
			t.Fatalf("vertex %d has no weights", vertexIndex)
		}
		total := 0.0
		for _, influence := range row {
			total += influence.Weight
		}
		if math.Abs(total-1.0) > 1e-6 {
			t.Fatalf("vertex %d weight sum mismatch: %f", vertexIndex, total)
		}
	}
}

func TestAssignPartWeightsDistance(t *testing.T) {
	part := buildWeightPart()
	report := assignPartWeights(part, buildWeightSkeleton(t), distanceWeightConfig(), nil, weightFrame(), nil)

	if report.Method != weightMethodDistance {
		t.Fatalf("method mismatch: %s", report.Method)
	}
	if len(report.Attempts) != 1 || report.Attempts[0].Method != weightMethodDistance {
		t.Fatalf("attempts mismatch: %+v", report.Attempts)
	}
	assertWeightSums(t, part.Weights)

	// 下端頂点は下ボーン、上端頂点は上ボーンが最大影響になる
	if part.Weights[0][0].BoneName != model.HIPS.String() {
		t.Fatalf("lower vertex should bind to hips: %+v", part.Weights[0])
	}
	if part.Weights[1][0].BoneName != model.SPINE.String() {
		t.Fatalf("upper vertex should bind to spine: %+v", part.Weights[1])
	}
	if report.WeightedBones != 2 {
		t.Fatalf("weighted bone count mismatch: %d", report.WeightedBones)
	}
}

func TestAssignDistanceWeightsEquidistant(t *testing.T) {
	// 両ボーン接合点上の頂点は距離が等しく、均等割りになる
	part := &model.MeshPart{
		Name:      "joint",
		Positions: []mmath.Vec3{mmath.NewVec3(0.5, 0, 1)},
	}
	weights := assignDistanceWeights(part, buildWeightSkeleton(t), distanceWeightConfig(), nil, weightFrame())
	if len(weights[0]) != 2 {
		t.Fatalf("influence count mismatch: %+v", weights[0])
	}
	if math.Abs(weights[0][0].Weight-0.5) > 1e-9 || math.Abs(weights[0][1].Weight-0.5) > 1e-9 {
		t.Fatalf("equidistant bones should split evenly: %+v", weights[0])
	}
}

func TestAssignDistanceWeightsGateExclusion(t *testing.T) {
	config := distanceWeightConfig()
	config.UseAnatomyGates = true
	refs := defaultAnatomyRefs()

	// 左腕高さの左側頂点: 右腕ボーンはゲートで除外される
	skeleton := model.NewSkeleton("arms")
	skeleton.Bones.AppendRaw(model.NewBone(model.ARM.Left(), mmath.NewVec3(0.2, 0, 1.5), mmath.NewVec3(0.7, 0, 1.5)))
	skeleton.Bones.AppendRaw(model.NewBone(model.ARM.Right(), mmath.NewVec3(-0.2, 0, 1.5), mmath.NewVec3(-0.7, 0, 1.5)))

	part := &model.MeshPart{
		Name:      "arm",
		Positions: []mmath.Vec3{mmath.NewVec3(0.5, 0, 1.5)},
	}
	weights := assignDistanceWeights(part, skeleton, config, refs, weightFrame())
	if len(weights[0]) != 1 || weights[0][0].BoneName != model.ARM.Left() {
		t.Fatalf("gated bone should be excluded: %+v", weights[0])
	}
}

func TestAssignDistanceWeightsUngatedRetry(t *testing.T) {
	config := distanceWeightConfig()
	config.UseAnatomyGates = true
	refs := defaultAnatomyRefs()

	// 全ボーンがゲート外でもゲートなしで必ず割り当てる
	skeleton := model.NewSkeleton("right only")
	skeleton.Bones.AppendRaw(model.NewBone(model.ARM.Right(), mmath.NewVec3(-0.2, 0, 1.5), mmath.NewVec3(-0.7, 0, 1.5)))

	part := &model.MeshPart{
		Name:      "left vertex",
		Positions: []mmath.Vec3{mmath.NewVec3(0.5, 0, 1.5)},
	}
	weights := assignDistanceWeights(part, skeleton, config, refs, weightFrame())
	if len(weights[0]) != 1 || weights[0][0].BoneName != model.ARM.Right() {
		t.Fatalf("ungated retry should bind every vertex: %+v", weights[0])
	}
	if math.Abs(weights[0][0].Weight-1.0) > 1e-9 {
		t.Fatalf("single candidate should take full weight: %+v", weights[0])
	}
}

func TestAssignPartWeightsHeatSuccess(t *testing.T) {
	config := distanceWeightConfig()
	config.SkinningMethod = model.SKINNING_METHOD_BONE_HEAT

	solver := &fakeHeatSolver{
		solveFunc: func(part *model.MeshPart, skeleton *model.Skeleton) (model.VertexWeights, error) {
			weights := model.NewVertexWeights(part.VertexCount())
			for i := range weights {
				weights[i] = []model.BoneWeight{{BoneName: model.HIPS.String(), Weight: 1.0}}
			}
			return weights, nil
		},
	}
	part := buildWeightPart()
	report := assignPartWeights(part, buildWeightSkeleton(t), config, nil, weightFrame(), solver)

	if report.Method != weightMethodBoneHeat {
		t.Fatalf("method mismatch: %s", report.Method)
	}
	if solver.calls != 1 {
		t.Fatalf("solver call count mismatch: %d", solver.calls)
	}
	if len(report.Attempts) != 1 || report.Attempts[0].WeightedBones != 1 {
		t.Fatalf("attempts mismatch: %+v", report.Attempts)
	}
	assertWeightSums(t, part.Weights)
}

func TestAssignPartWeightsHeatErrorFallsBack(t *testing.T) {
	config := distanceWeightConfig()
	config.SkinningMethod = model.SKINNING_METHOD_BONE_HEAT

	solver := &fakeHeatSolver{
		solveFunc: func(part *model.MeshPart, skeleton *model.Skeleton) (model.VertexWeights, error) {
			return nil, fmt.Errorf("ソルバ起動失敗")
		},
	}
	part := buildWeightPart()
	report := assignPartWeights(part, buildWeightSkeleton(t), config, nil, weightFrame(), solver)

	if report.Method != weightMethodDistance {
		t.Fatalf("method mismatch: %s", report.Method)
	}
	if len(report.Attempts) != 2 {
		t.Fatalf("attempts mismatch: %+v", report.Attempts)
	}
	if report.Attempts[0].Method != weightMethodBoneHeat || report.Attempts[0].Err == nil {
		t.Fatalf("heat attempt should record the error: %+v", report.Attempts[0])
	}
	assertWeightSums(t, part.Weights)
}

func TestAssignPartWeightsHeatEmptyRetriesCleaned(t *testing.T) {
	config := distanceWeightConfig()
	config.SkinningMethod = model.SKINNING_METHOD_BONE_HEAT

	solver := &fakeHeatSolver{}
	solver.solveFunc = func(part *model.MeshPart, skeleton *model.Skeleton) (model.VertexWeights, error) {
		if solver.calls == 1 {
			return model.NewVertexWeights(part.VertexCount()), nil
		}
		weights := model.NewVertexWeights(part.VertexCount())
		for i := range weights {
			weights[i] = []model.BoneWeight{{BoneName: model.HIPS.String(), Weight: 1.0}}
		}
		return weights, nil
	}

	// 重複頂点入りメッシュ: クリーニング後の再試行で全頂点が埋まる
	part := buildDirtyMeshPart()
	report := assignPartWeights(part, buildWeightSkeleton(t), config, nil, weightFrame(), solver)

	if report.Method != weightMethodBoneHeat {
		t.Fatalf("method mismatch: %s", report.Method)
	}
	if solver.calls != 2 {
		t.Fatalf("solver call count mismatch: %d", solver.calls)
	}
	if len(report.Attempts) != 2 || !report.Attempts[1].Cleaned {
		t.Fatalf("cleaned retry should be recorded: %+v", report.Attempts)
	}
	// 結合先ウェイトが重複頂点へ展開される
	if len(part.Weights[3]) != 1 || part.Weights[3][0].BoneName != model.HIPS.String() {
		t.Fatalf("merged vertex weights mismatch: %+v", part.Weights[3])
	}
}

func TestAssignPartWeightsHeatEmptyFallsBackToDistance(t *testing.T) {
	config := distanceWeightConfig()
	config.SkinningMethod = model.SKINNING_METHOD_BONE_HEAT

	solver := &fakeHeatSolver{
		solveFunc: func(part *model.MeshPart, skeleton *model.Skeleton) (model.VertexWeights, error) {
			return model.NewVertexWeights(part.VertexCount()), nil
		},
	}
	// 有効な面を持つメッシュでクリーニング再試行まで到達させる
	part := &model.MeshPart{
		Name: "triangle",
		Positions: []mmath.Vec3{
			mmath.NewVec3(0, 0, 0.2),
			mmath.NewVec3(0.4, 0, 0.2),
			mmath.NewVec3(0, 0.4, 1.8),
		},
		Faces: [][3]int{{0, 1, 2}},
	}
	report := assignPartWeights(part, buildWeightSkeleton(t), config, nil, weightFrame(), solver)

	if report.Method != weightMethodDistanceFallback {
		t.Fatalf("method mismatch: %s", report.Method)
	}
	if solver.calls != 2 {
		t.Fatalf("cleaned retry should still run: %d", solver.calls)
	}
	// 最終的に全頂点が距離方式で埋まる
	assertWeightSums(t, part.Weights)
}

func TestClampVertexInfluences(t *testing.T) {
	weights := model.VertexWeights{
		{
			{BoneName: "b0", Weight: 0.30},
			{BoneName: "b1", Weight: 0.10},
			{BoneName: "b2", Weight: 0.25},
			{BoneName: "b3", Weight: 0.15},
			{BoneName: "b4", Weight: 0.12},
			{BoneName: "b5", Weight: 0.08},
		},
	}
	clampVertexInfluences(weights, 4)
	row := weights[0]
	if len(row) != 4 {
		t.Fatalf("influence count should clamp to 4: %d", len(row))
	}
	// 降順ソート後の上位4つ(0.30+0.25+0.15+0.12=0.82)で再正規化される
	if row[0].BoneName != "b0" || math.Abs(row[0].Weight-0.30/0.82) > 1e-9 {
		t.Fatalf("largest influence mismatch: %+v", row[0])
	}
	total := 0.0
	for _, influence := range row {
		total += influence.Weight
	}
	if math.Abs(total-1.0) > 1e-9 {
		t.Fatalf("clamped weights should renormalize: %f", total)
	}
	for i := 1; i < len(row); i++ {
		if row[i].Weight > row[i-1].Weight {
			t.Fatalf("weights should stay descending: %+v", row)
		}
	}
}

func TestClampVertexInfluencesKeepsEmptyRows(t *testing.T) {
	weights := model.VertexWeights{nil, {}}
	clampVertexInfluences(weights, 4)
	if len(weights[0]) != 0 || len(weights[1]) != 0 {
		t.Fatalf("empty rows should stay empty: %+v", weights)
	}
}

func TestCandidateWeightBonesScope(t *testing.T) {
	skeleton := buildWeightSkeleton(t)
	skeleton.Bones.AppendRaw(model.NewBone("Prop_Sword", mmath.NewVec3(1, 0, 1), mmath.NewVec3(1, 0, 2)))

	core := candidateWeightBones(skeleton, model.WEIGHT_BONE_SCOPE_CORE)
	if len(core) != 2 {
		t.Fatalf("core scope should filter extras: %d", len(core))
	}
	all := candidateWeightBones(skeleton, model.WEIGHT_BONE_SCOPE_ALL)
	if len(all) != 3 {
		t.Fatalf("all scope should keep every bone: %d", len(all))
	}

	// core該当ボーンがない場合は全ボーンへ広げる
	propsOnly := model.NewSkeleton("props")
	propsOnly.Bones.AppendRaw(model.NewBone("Prop_Sword", mmath.NewVec3(0, 0, 0), mmath.NewVec3(0, 0, 1)))
	widened := candidateWeightBones(propsOnly, model.WEIGHT_BONE_SCOPE_CORE)
	if len(widened) != 1 {
		t.Fatalf("empty core should widen to all bones: %d", len(widened))
	}
}
