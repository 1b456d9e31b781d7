// 指示: miu200521358
package minteractor

import (
	"math"
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

// buildDirtyMeshPart は重複頂点・退化面・孤立頂点を含むメッシュを構築する。
// v3はv0の重複、v4は孤立、v5はv0-v1と同一直線上にある。
func buildDirtyMeshPart() *model.MeshPart {
	return &model.MeshPart{
		Name: "body",
		Positions: []mmath.Vec3{
			mmath.NewVec3(0, 0, 0),
			mmath.NewVec3(1, 0, 0),
			mmath.NewVec3(0, 1, 0),
			mmath.NewVec3(0, 0, 0),
			mmath.NewVec3(9, 9, 9),
			mmath.NewVec3(2, 0, 0),
		},
		Faces: [][3]int{
			{0, 1, 2},
			{3, 1, 2},
			{0, 1, 3},
			{0, 1, 5},
		},
	}
}

func TestCleanupMeshPart(t *testing.T) {
	cleaned := cleanupMeshPart(buildDirtyMeshPart())
	if cleaned == nil {
		t.Fatalf("cleanup should return a result")
	}
	// 重複結合後に退化面と孤立頂点が消え、3頂点2面が残る
	if cleaned.Part.VertexCount() != 3 {
		t.Fatalf("vertex count mismatch: %d", cleaned.Part.VertexCount())
	}
	if len(cleaned.Part.Faces) != 2 {
		t.Fatalf("face count mismatch: %d", len(cleaned.Part.Faces))
	}
	for _, face := range cleaned.Part.Faces {
		if face != [3]int{0, 1, 2} {
			t.Fatalf("face should remap to merged vertices: %+v", face)
		}
	}
	if cleaned.Part.Name != "body(cleaned)" {
		t.Fatalf("cleaned part name mismatch: %s", cleaned.Part.Name)
	}
}

func TestCleanupMeshPartMapping(t *testing.T) {
	cleaned := cleanupMeshPart(buildDirtyMeshPart())
	expected := []int{0, 1, 2, 0, -1, -1}
	if len(cleaned.OriginalToCleaned) != len(expected) {
		t.Fatalf("mapping length mismatch: %d", len(cleaned.OriginalToCleaned))
	}
	for i, cleanedIndex := range expected {
		if cleaned.OriginalToCleaned[i] != cleanedIndex {
			t.Fatalf("mapping mismatch at %d: %d != %d", i, cleaned.OriginalToCleaned[i], cleanedIndex)
		}
	}
}

func TestCleanupMeshPartDoesNotMutateOriginal(t *testing.T) {
	part := buildDirtyMeshPart()
	cleanupMeshPart(part)
	if part.VertexCount() != 6 || len(part.Faces) != 4 {
		t.Fatalf("original part should stay untouched: vertices=%d faces=%d", part.VertexCount(), len(part.Faces))
	}
}

func TestCleanupMeshPartNil(t *testing.T) {
	if cleanupMeshPart(nil) != nil {
		t.Fatalf("nil part should yield nil")
	}
}

func TestExpandCleanedWeights(t *testing.T) {
	cleaned := cleanupMeshPart(buildDirtyMeshPart())
	weights := model.NewVertexWeights(cleaned.Part.VertexCount())
	weights[0] = []model.BoneWeight{{BoneName: "a", Weight: 1.0}}
	weights[1] = []model.BoneWeight{{BoneName: "a", Weight: 0.5}, {BoneName: "b", Weight: 0.5}}
	weights[2] = []model.BoneWeight{{BoneName: "b", Weight: 1.0}}

	expanded := expandCleanedWeights(cleaned, weights)
	if len(expanded) != 6 {
		t.Fatalf("expanded length mismatch: %d", len(expanded))
	}
	// 重複頂点は結合先のウェイトを受け取る
	if len(expanded[3]) != 1 || expanded[3][0].BoneName != "a" || math.Abs(expanded[3][0].Weight-1.0) > 1e-12 {
		t.Fatalf("merged vertex should inherit weights: %+v", expanded[3])
	}
	// 除去された頂点は空のまま
	if len(expanded[4]) != 0 || len(expanded[5]) != 0 {
		t.Fatalf("removed vertices should stay empty: %+v %+v", expanded[4], expanded[5])
	}

	// 展開結果は元ウェイト行と共有しない
	expanded[0][0].Weight = 0.25
	if math.Abs(weights[0][0].Weight-1.0) > 1e-12 {
		t.Fatalf("expanded rows should be copies: %+v", weights[0])
	}
}

func TestExpandCleanedWeightsNil(t *testing.T) {
	if expandCleanedWeights(nil, nil) != nil {
		t.Fatalf("nil cleaned part should yield nil")
	}
}

func TestTriangleAreaSquared(t *testing.T) {
	area := triangleAreaSquared(mmath.NewVec3(0, 0, 0), mmath.NewVec3(1, 0, 0), mmath.NewVec3(0, 1, 0))
	if math.Abs(area-1.0) > 1e-12 {
		t.Fatalf("unit right triangle cross square mismatch: %f", area)
	}
	if triangleAreaSquared(mmath.NewVec3(0, 0, 0), mmath.NewVec3(1, 0, 0), mmath.NewVec3(2, 0, 0)) != 0 {
		t.Fatalf("collinear triangle should have zero area")
	}
}
