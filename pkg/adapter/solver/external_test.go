// 指示: miu200521358
package solver

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

func buildTestPart() *model.MeshPart {
	return &model.MeshPart{
		Name: "body",
		Positions: []mmath.Vec3{
			mmath.NewVec3(0, 0, 0),
			mmath.NewVec3(1, 0, 0),
			mmath.NewVec3(0, 1, 0),
		},
		Faces: [][3]int{{0, 1, 2}},
	}
}

func buildTestSkeleton() *model.Skeleton {
	skeleton := model.NewSkeleton("test")
	root := model.NewBone("mixamorig:Hips", mmath.NewVec3(0, 0, 0.5), mmath.NewVec3(0, 0, 0.6))
	skeleton.Bones.AppendRaw(root)
	spine := model.NewBone("mixamorig:Spine", mmath.NewVec3(0, 0, 0.6), mmath.NewVec3(0, 0, 0.7))
	spine.ParentIndex = root.Index()
	skeleton.Bones.AppendRaw(spine)
	return skeleton
}

func TestBuildSolveRequest(t *testing.T) {
	request := buildSolveRequest(buildTestPart(), buildTestSkeleton())
	if len(request.Vertices) != 3 {
		t.Fatalf("vertex count mismatch: %d", len(request.Vertices))
	}
	if len(request.Faces) != 1 {
		t.Fatalf("face count mismatch: %d", len(request.Faces))
	}
	if len(request.Bones) != 2 {
		t.Fatalf("bone count mismatch: %d", len(request.Bones))
	}
	if request.Bones[0].Name != "mixamorig:Hips" || request.Bones[0].Parent != -1 {
		t.Fatalf("root bone mismatch: %+v", request.Bones[0])
	}
	if request.Bones[1].Parent != 0 {
		t.Fatalf("child bone parent mismatch: %+v", request.Bones[1])
	}

	// JSON契約の確認
	b, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, key := range []string{`"vertices"`, `"faces"`, `"bones"`, `"head"`, `"tail"`} {
		if !strings.Contains(string(b), key) {
			t.Fatalf("request JSON missing key %s: %s", key, string(b))
		}
	}
}

func TestParseSolveResponseNormalizesRows(t *testing.T) {
	data := []byte(`{"weights": [
		[{"bone": "a", "weight": 2.0}, {"bone": "b", "weight": 2.0}],
		[{"bone": "a", "weight": 0.5}],
		[]
	]}`)
	weights, err := parseSolveResponse(data, 3)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(weights) != 3 {
		t.Fatalf("vertex count mismatch: %d", len(weights))
	}
	if math.Abs(weights[0][0].Weight-0.5) > 1e-12 || math.Abs(weights[0][1].Weight-0.5) > 1e-12 {
		t.Fatalf("row should normalize to 1: %+v", weights[0])
	}
	if math.Abs(weights[1][0].Weight-1.0) > 1e-12 {
		t.Fatalf("single influence should normalize to 1: %+v", weights[1])
	}
	if len(weights[2]) != 0 {
		t.Fatalf("empty row should stay empty: %+v", weights[2])
	}
}

func TestParseSolveResponseFiltersInvalidInfluences(t *testing.T) {
	data := []byte(`{"weights": [
		[{"bone": "a", "weight": 1.0}, {"bone": "", "weight": 1.0}, {"bone": "b", "weight": -0.5}]
	]}`)
	weights, err := parseSolveResponse(data, 1)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(weights[0]) != 1 || weights[0][0].BoneName != "a" {
		t.Fatalf("invalid influences should be filtered: %+v", weights[0])
	}
}

func TestParseSolveResponseVertexCountMismatch(t *testing.T) {
	data := []byte(`{"weights": [[{"bone": "a", "weight": 1.0}]]}`)
	if _, err := parseSolveResponse(data, 2); err == nil {
		t.Fatalf("vertex count mismatch should fail")
	}
}

func TestParseSolveResponseErrorField(t *testing.T) {
	data := []byte(`{"weights": [], "error": "mesh is degenerate"}`)
	_, err := parseSolveResponse(data, 0)
	if err == nil || !strings.Contains(err.Error(), "mesh is degenerate") {
		t.Fatalf("error field should propagate: %v", err)
	}
}

func TestParseSolveResponseInvalidJSON(t *testing.T) {
	if _, err := parseSolveResponse([]byte("not json"), 1); err == nil {
		t.Fatalf("invalid JSON should fail")
	}
}

func TestSolveWithoutCommandFails(t *testing.T) {
	solver := NewExternalHeatSolver("   ")
	if _, err := solver.Solve(buildTestPart(), buildTestSkeleton()); err == nil {
		t.Fatalf("empty command should fail")
	}
}

func TestSolveValidatesArguments(t *testing.T) {
	solver := NewExternalHeatSolver("solver")
	if _, err := solver.Solve(nil, buildTestSkeleton()); err == nil {
		t.Fatalf("nil part should fail")
	}
	if _, err := solver.Solve(buildTestPart(), nil); err == nil {
		t.Fatalf("nil skeleton should fail")
	}
}
