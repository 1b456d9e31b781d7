// 指示: miu200521358
package gltf

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
)

// float32Bytes はfloat32列をリトルエンディアンで直列化する。
func float32Bytes(values ...float32) []byte {
	buf := bytes.NewBuffer(nil)
	for _, value := range values {
		b := [4]byte{}
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(value))
		buf.Write(b[:])
	}
	return buf.Bytes()
}

// uint16Bytes はuint16列をリトルエンディアンで直列化する。
func uint16Bytes(values ...uint16) []byte {
	buf := bytes.NewBuffer(nil)
	for _, value := range values {
		b := [2]byte{}
		binary.LittleEndian.PutUint16(b[:], value)
		buf.Write(b[:])
	}
	return buf.Bytes()
}

// encodeTestGLB はJSONドキュメントとBINチャンクからGLBバイト列を組み立てる。
func encodeTestGLB(t *testing.T, doc map[string]any, bin []byte) []byte {
	t.Helper()
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("json marshal failed: %v", err)
	}
	for len(jsonBytes)%4 != 0 {
		jsonBytes = append(jsonBytes, ' ')
	}
	paddedBin := append([]byte(nil), bin...)
	for len(paddedBin)%4 != 0 {
		paddedBin = append(paddedBin, 0)
	}

	totalLength := 12 + 8 + len(jsonBytes)
	if len(paddedBin) > 0 {
		totalLength += 8 + len(paddedBin)
	}
	buf := bytes.NewBuffer(nil)
	writeUint32 := func(value uint32) {
		b := [4]byte{}
		binary.LittleEndian.PutUint32(b[:], value)
		buf.Write(b[:])
	}
	writeUint32(0x46546C67)
	writeUint32(2)
	writeUint32(uint32(totalLength))
	writeUint32(uint32(len(jsonBytes)))
	writeUint32(0x4E4F534A)
	buf.Write(jsonBytes)
	if len(paddedBin) > 0 {
		writeUint32(uint32(len(paddedBin)))
		writeUint32(0x004E4942)
		buf.Write(paddedBin)
	}
	return buf.Bytes()
}

// writeTestGLBFile はGLBバイト列を一時ファイルへ保存しパスを返す。
func writeTestGLBFile(t *testing.T, doc map[string]any, bin []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.glb")
	if err := os.WriteFile(path, encodeTestGLB(t, doc, bin), 0o644); err != nil {
		t.Fatalf("write glb failed: %v", err)
	}
	return path
}

// buildTriangleDoc は三角形1枚+2jointスキンのテストドキュメントを構築する。
func buildTriangleDoc(binLength int) map[string]any {
	return map[string]any{
		"asset": map[string]any{"version": "2.0"},
		"scene": 0,
		"scenes": []any{
			map[string]any{"nodes": []any{0, 1}},
		},
		"nodes": []any{
			map[string]any{
				"name":        "body_node",
				"mesh":        0,
				"translation": []any{0.0, 1.0, 0.0},
			},
			map[string]any{
				"name":        "joint_root",
				"children":    []any{2},
				"translation": []any{0.0, 0.0, 0.0},
			},
			map[string]any{
				"name":        "joint_child",
				"translation": []any{0.0, 1.0, 0.0},
			},
		},
		"meshes": []any{
			map[string]any{
				"name": "body",
				"primitives": []any{
					map[string]any{
						"attributes": map[string]any{"POSITION": 0},
						"indices":    1,
					},
				},
			},
		},
		"skins": []any{
			map[string]any{
				"name":   "rig",
				"joints": []any{1, 2},
			},
		},
		"buffers": []any{
			map[string]any{"byteLength": binLength},
		},
		"bufferViews": []any{
			map[string]any{"buffer": 0, "byteOffset": 0, "byteLength": 36},
			map[string]any{"buffer": 0, "byteOffset": 36, "byteLength": 6},
		},
		"accessors": []any{
			map[string]any{
				"bufferView":    0,
				"componentType": 5126,
				"count":         3,
				"type":          "VEC3",
			},
			map[string]any{
				"bufferView":    1,
				"componentType": 5123,
				"count":         3,
				"type":          "SCALAR",
			},
		},
	}
}

// buildTriangleBin は三角形1枚分のBINチャンクを構築する。
func buildTriangleBin() []byte {
	bin := float32Bytes(
		0, 0, 0,
		1, 0, 0,
		0, 2, 0,
	)
	return append(bin, uint16Bytes(0, 1, 2)...)
}

func TestCanLoad(t *testing.T) {
	repository := NewGltfRepository()
	if !repository.CanLoad("model.glb") || !repository.CanLoad("MODEL.GLB") {
		t.Fatalf("glb should be loadable")
	}
	if repository.CanLoad("model.gltf") || repository.CanLoad("model.vrm") {
		t.Fatalf("non-glb should be rejected")
	}
}

func TestInferName(t *testing.T) {
	repository := NewGltfRepository()
	if name := repository.InferName(filepath.Join("assets", "avatar.glb")); name != "avatar" {
		t.Fatalf("name mismatch: %s", name)
	}
}

func TestLoadTriangleGLB(t *testing.T) {
	bin := buildTriangleBin()
	path := writeTestGLBFile(t, buildTriangleDoc(len(bin)), bin)

	repository := NewGltfRepository()
	modelData, err := repository.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(modelData.Parts) != 1 {
		t.Fatalf("part count mismatch: %d", len(modelData.Parts))
	}
	part := modelData.Parts[0]
	if part.VertexCount() != 3 || len(part.Faces) != 1 {
		t.Fatalf("geometry mismatch: vertices=%d faces=%d", part.VertexCount(), len(part.Faces))
	}

	// ノード平行移動(0,1,0)適用後にZ-upへ変換される
	// local(0,2,0) → world Y-up(0,3,0) → Z-up(0,0,3)
	expected := mmath.NewVec3(0, 0, 3)
	if part.Positions[2].Distance(expected) > 1e-6 {
		t.Fatalf("position mismatch: %+v != %+v", part.Positions[2], expected)
	}
	if part.Faces[0] != [3]int{0, 1, 2} {
		t.Fatalf("face mismatch: %+v", part.Faces[0])
	}
}

func TestLoadExtractsSkeletonCandidate(t *testing.T) {
	bin := buildTriangleBin()
	path := writeTestGLBFile(t, buildTriangleDoc(len(bin)), bin)

	repository := NewGltfRepository()
	modelData, err := repository.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(modelData.SkeletonCandidates) != 1 {
		t.Fatalf("candidate count mismatch: %d", len(modelData.SkeletonCandidates))
	}
	skeleton := modelData.SkeletonCandidates[0]
	if skeleton.Bones.Len() != 2 {
		t.Fatalf("bone count mismatch: %d", skeleton.Bones.Len())
	}

	root, ok := skeleton.Bones.GetByName("joint_root")
	if !ok {
		t.Fatalf("root joint missing")
	}
	child, ok := skeleton.Bones.GetByName("joint_child")
	if !ok {
		t.Fatalf("child joint missing")
	}
	if child.ParentIndex != root.Index() {
		t.Fatalf("parent wiring mismatch: %d != %d", child.ParentIndex, root.Index())
	}
	// joint_childはY-up(0,1,0)→Z-up(0,0,1)
	if child.Head.Distance(mmath.NewVec3(0, 0, 1)) > 1e-6 {
		t.Fatalf("child head mismatch: %+v", child.Head)
	}
	// 親のtailは子jointの位置を指す
	if root.Tail.Distance(child.Head) > 1e-6 {
		t.Fatalf("root tail should point at child head: %+v", root.Tail)
	}
}

func TestLoadRejectsWrongExtension(t *testing.T) {
	repository := NewGltfRepository()
	if _, err := repository.Load("model.obj"); err == nil {
		t.Fatalf("wrong extension should fail")
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	repository := NewGltfRepository()
	if _, err := repository.Load(filepath.Join(t.TempDir(), "missing.glb")); err == nil {
		t.Fatalf("missing file should fail")
	}
}

func TestParseGLBChunksRejectsBadMagic(t *testing.T) {
	data := make([]byte, 32)
	if _, _, err := parseGLBChunks(data); err == nil {
		t.Fatalf("bad magic should fail")
	}
}

func TestParseGLBChunksRejectsUnsupportedVersion(t *testing.T) {
	bin := buildTriangleBin()
	data := encodeTestGLB(t, buildTriangleDoc(len(bin)), bin)
	binary.LittleEndian.PutUint32(data[4:8], 1)
	if _, _, err := parseGLBChunks(data); err == nil {
		t.Fatalf("version 1 should be unsupported")
	}
}

func TestTriangulateIndicesModes(t *testing.T) {
	indexes := []int{0, 1, 2, 3}
	strip := triangulateIndices(indexes, gltfPrimitiveModeTriangleStrip)
	if len(strip) != 2 {
		t.Fatalf("strip triangle count mismatch: %d", len(strip))
	}
	if strip[1] != [3]int{2, 1, 3} {
		t.Fatalf("strip winding mismatch: %+v", strip[1])
	}
	fan := triangulateIndices(indexes, gltfPrimitiveModeTriangleFan)
	if len(fan) != 2 || fan[1] != [3]int{0, 2, 3} {
		t.Fatalf("fan mismatch: %+v", fan)
	}
	if len(triangulateIndices(indexes, gltfPrimitiveModeLines)) != 0 {
		t.Fatalf("line mode should produce no triangles")
	}
}

func TestConvertAxisRoundTrip(t *testing.T) {
	original := mmath.NewVec3(1.5, -2.5, 3.5)
	converted := convertZUpToGltf(convertGltfToZUp(original))
	if converted.Distance(original) > 1e-12 {
		t.Fatalf("axis conversion should round trip: %+v", converted)
	}
}
