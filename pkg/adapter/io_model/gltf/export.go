// 指示: miu200521358
package gltf

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/miu200521358/mu_autorig/pkg/adapter/io_common"
	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/usecase/port/mrig"
)

const (
	exportFileMode = 0o644
	// exportMaxJointsPerVertex はJOINTS_0/WEIGHTS_0で表現できる1頂点あたりの上限を表す。
	exportMaxJointsPerVertex = 4

	gltfBufferViewTargetArrayBuffer = 34962
)

// CanSave は拡張子に応じて書き込み可否を判定する。
func (r *GltfRepository) CanSave(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".glb")
}

// Save はリグ付与済みモデルをGLBとして書き出す。
// 入力GLBのJSONチャンクを土台に、スケルトンnode・skin・スキニング属性を追記する。
// 頂点位置はワールド座標を焼き込み、メッシュnodeの変換は恒等化する。
func (r *GltfRepository) Save(path string, modelData *model.RigModel, options mrig.SaveOptions) error {
	if !r.CanSave(path) {
		return io_common.NewIoExtInvalid(path, nil)
	}
	if modelData == nil || len(modelData.JSONChunk) == 0 {
		return io_common.NewIoParseFailed("書き出し対象のGLB JSONチャンクがありません", nil)
	}
	if modelData.Skeleton == nil || modelData.Skeleton.Bones.Len() == 0 {
		return io_common.NewIoParseFailed("書き出し対象のスケルトンがありません", nil)
	}
	logGltfInfo("GLB書出開始: file=%s bones=%d parts=%d", filepath.Base(path), modelData.Skeleton.Bones.Len(), len(modelData.Parts))

	root := map[string]any{}
	if err := json.Unmarshal(modelData.JSONChunk, &root); err != nil {
		return io_common.NewIoParseFailed("GLB JSONチャンクの再解析に失敗しました", err)
	}
	if !options.KeepAnimations {
		delete(root, "animations")
	}

	binData := padBytes(append([]byte(nil), modelData.BinChunk...), 0x00)

	writer := &glbDocumentWriter{root: root, binData: binData}
	jointNodeIndexes, rootBoneNodeIndex := writer.appendSkeletonNodes(modelData.Skeleton)
	skinIndex := writer.appendSkin(modelData.Skeleton, jointNodeIndexes)
	writer.attachNodeToScene(rootBoneNodeIndex)

	jointIndexByBoneName := map[string]int{}
	for _, bone := range modelData.Skeleton.Bones.Values() {
		jointIndexByBoneName[bone.Name()] = bone.Index()
	}
	for _, part := range modelData.Parts {
		if part == nil || len(part.Weights) == 0 {
			continue
		}
		if err := writer.applyPartSkinning(part, skinIndex, jointIndexByBoneName); err != nil {
			return err
		}
	}

	writer.updateBufferLength()
	outputBytes, err := writer.encodeGLB()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, outputBytes, exportFileMode); err != nil {
		return io_common.NewIoParseFailed("GLBファイルの書き出しに失敗しました", err)
	}
	logGltfInfo("GLB書出完了: file=%s bytes=%d", filepath.Base(path), len(outputBytes))
	return nil
}

// glbDocumentWriter はGLB書き出し中のJSON+BIN編集状態を表す。
type glbDocumentWriter struct {
	root    map[string]any
	binData []byte
	// meshOwnerNode は共有メッシュ複製の判定に用いる meshIndex→nodeIndex を保持する。
	meshOwnerNode map[int]int
}

// rootArray はトップレベル配列を取得する。未定義なら空配列を登録して返す。
func (w *glbDocumentWriter) rootArray(key string) []any {
	values, ok := w.root[key].([]any)
	if !ok {
		values = []any{}
		w.root[key] = values
	}
	return values
}

// appendRootArray はトップレベル配列へ要素を追加しindexを返す。
func (w *glbDocumentWriter) appendRootArray(key string, value any) int {
	values := w.rootArray(key)
	values = append(values, value)
	w.root[key] = values
	return len(values) - 1
}

// appendBinData はBINチャンク末尾へデータを追加しbufferView indexを返す。
func (w *glbDocumentWriter) appendBinData(data []byte, target int) int {
	w.binData = padBytes(w.binData, 0x00)
	byteOffset := len(w.binData)
	w.binData = append(w.binData, data...)

	view := map[string]any{
		"buffer":     0,
		"byteOffset": byteOffset,
		"byteLength": len(data),
	}
	if target > 0 {
		view["target"] = target
	}
	return w.appendRootArray("bufferViews", view)
}

// appendSkeletonNodes はボーンごとのnodeを追記し、joint node indexの配列と根nodeを返す。
// nodeのtranslationは親ボーンhead基準のローカルオフセット(glTF Y-up)とする。
func (w *glbDocumentWriter) appendSkeletonNodes(skeleton *model.Skeleton) ([]int, int) {
	nodes := w.rootArray("nodes")
	baseNodeIndex := len(nodes)

	bones := skeleton.Bones.Values()
	jointNodeIndexes := make([]int, len(bones))
	rootBoneNodeIndex := -1
	for i, bone := range bones {
		headGltf := convertZUpToGltf(bone.Head)
		localOffset := headGltf
		if bone.ParentIndex >= 0 {
			parentBone, err := skeleton.Bones.Get(bone.ParentIndex)
			if err == nil {
				localOffset = headGltf.Subed(convertZUpToGltf(parentBone.Head))
			}
		}
		node := map[string]any{
			"name":        bone.Name(),
			"translation": []any{localOffset.X, localOffset.Y, localOffset.Z},
		}
		nodes = append(nodes, node)
		jointNodeIndexes[i] = baseNodeIndex + i
		if bone.ParentIndex < 0 && rootBoneNodeIndex < 0 {
			rootBoneNodeIndex = jointNodeIndexes[i]
		}
	}

	// 親子はjoint node間のchildrenで表現する。
	for i, bone := range bones {
		if bone.ParentIndex < 0 {
			continue
		}
		parentNode, ok := nodes[jointNodeIndexes[bone.ParentIndex]].(map[string]any)
		if !ok {
			continue
		}
		children, _ := parentNode["children"].([]any)
		parentNode["children"] = append(children, jointNodeIndexes[i])
	}

	w.root["nodes"] = nodes
	return jointNodeIndexes, rootBoneNodeIndex
}

// appendSkin はskeletonのskin要素とinverseBindMatricesを追記しskin indexを返す。
// ボーンのグローバル変換は平行移動のみのため、IBMは translate(-head) とする。
func (w *glbDocumentWriter) appendSkin(skeleton *model.Skeleton, jointNodeIndexes []int) int {
	bones := skeleton.Bones.Values()
	ibmBytes := make([]byte, 0, len(bones)*16*4)
	for _, bone := range bones {
		headGltf := convertZUpToGltf(bone.Head)
		ibm := [16]float64{
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			-headGltf.X, -headGltf.Y, -headGltf.Z, 1,
		}
		for _, value := range ibm {
			ibmBytes = appendFloat32(ibmBytes, value)
		}
	}
	viewIndex := w.appendBinData(ibmBytes, 0)
	accessorIndex := w.appendRootArray("accessors", map[string]any{
		"bufferView":    viewIndex,
		"componentType": gltfComponentTypeFloat,
		"count":         len(bones),
		"type":          "MAT4",
	})

	joints := make([]any, len(jointNodeIndexes))
	for i, nodeIndex := range jointNodeIndexes {
		joints[i] = nodeIndex
	}
	return w.appendRootArray("skins", map[string]any{
		"name":                skeleton.Name(),
		"joints":              joints,
		"inverseBindMatrices": accessorIndex,
	})
}

// attachNodeToScene は既定sceneのルートへnodeを追加する。
func (w *glbDocumentWriter) attachNodeToScene(nodeIndex int) {
	if nodeIndex < 0 {
		return
	}
	scenes := w.rootArray("scenes")
	sceneIndex := 0
	if raw, ok := w.root["scene"].(float64); ok {
		sceneIndex = int(raw)
	}
	if sceneIndex < 0 || sceneIndex >= len(scenes) {
		scenes = append(scenes, map[string]any{"nodes": []any{}})
		sceneIndex = len(scenes) - 1
		w.root["scenes"] = scenes
		w.root["scene"] = sceneIndex
	}
	scene, ok := scenes[sceneIndex].(map[string]any)
	if !ok {
		return
	}
	sceneNodes, _ := scene["nodes"].([]any)
	scene["nodes"] = append(sceneNodes, nodeIndex)
}

// applyPartSkinning はパーツのprimitiveへ焼き込み座標とスキニング属性を書き込む。
func (w *glbDocumentWriter) applyPartSkinning(
	part *model.MeshPart,
	skinIndex int,
	jointIndexByBoneName map[string]int,
) error {
	nodes := w.rootArray("nodes")
	if part.NodeIndex < 0 || part.NodeIndex >= len(nodes) {
		return io_common.NewIoParseFailed("パーツのnode indexが不正です: %d", nil, part.NodeIndex)
	}
	node, ok := nodes[part.NodeIndex].(map[string]any)
	if !ok {
		return io_common.NewIoParseFailed("node要素の形式が不正です: %d", nil, part.NodeIndex)
	}

	meshIndex, err := w.resolveWritableMeshIndex(node, part.NodeIndex)
	if err != nil {
		return err
	}
	meshes := w.rootArray("meshes")
	if meshIndex < 0 || meshIndex >= len(meshes) {
		return io_common.NewIoParseFailed("mesh indexが不正です: %d", nil, meshIndex)
	}
	mesh, ok := meshes[meshIndex].(map[string]any)
	if !ok {
		return io_common.NewIoParseFailed("mesh要素の形式が不正です: %d", nil, meshIndex)
	}
	primitives, ok := mesh["primitives"].([]any)
	if !ok || part.PrimitiveIndex < 0 || part.PrimitiveIndex >= len(primitives) {
		return io_common.NewIoParseFailed("primitive indexが不正です: %d", nil, part.PrimitiveIndex)
	}
	primitive, ok := primitives[part.PrimitiveIndex].(map[string]any)
	if !ok {
		return io_common.NewIoParseFailed("primitive要素の形式が不正です: %d", nil, part.PrimitiveIndex)
	}
	attributes, ok := primitive["attributes"].(map[string]any)
	if !ok {
		attributes = map[string]any{}
		primitive["attributes"] = attributes
	}

	positionAccessor := w.appendBakedPositions(part.Positions)
	jointsAccessor, weightsAccessor, err := w.appendVertexSkinAttributes(part, jointIndexByBoneName)
	if err != nil {
		return err
	}
	attributes["POSITION"] = positionAccessor
	attributes["JOINTS_0"] = jointsAccessor
	attributes["WEIGHTS_0"] = weightsAccessor

	// ワールド座標を焼き込んだためnode変換は恒等化する。
	delete(node, "translation")
	delete(node, "rotation")
	delete(node, "scale")
	delete(node, "matrix")
	node["skin"] = skinIndex
	return nil
}

// resolveWritableMeshIndex はnodeの書き込み先mesh indexを返す。
// 共有メッシュは複製して固有メッシュへ切り替える。
func (w *glbDocumentWriter) resolveWritableMeshIndex(node map[string]any, nodeIndex int) (int, error) {
	rawMesh, ok := node["mesh"].(float64)
	if !ok {
		return -1, io_common.NewIoParseFailed("node.meshが未設定です: %d", nil, nodeIndex)
	}
	meshIndex := int(rawMesh)
	if w.meshOwnerNode == nil {
		w.meshOwnerNode = map[int]int{}
	}
	ownerNode, shared := w.meshOwnerNode[meshIndex]
	if !shared || ownerNode == nodeIndex {
		w.meshOwnerNode[meshIndex] = nodeIndex
		return meshIndex, nil
	}

	meshes := w.rootArray("meshes")
	if meshIndex < 0 || meshIndex >= len(meshes) {
		return -1, io_common.NewIoParseFailed("mesh indexが不正です: %d", nil, meshIndex)
	}
	clonedMesh, err := cloneJSONValue(meshes[meshIndex])
	if err != nil {
		return -1, io_common.NewIoParseFailed("共有メッシュの複製に失敗しました(mesh=%d)", err, meshIndex)
	}
	clonedIndex := w.appendRootArray("meshes", clonedMesh)
	node["mesh"] = clonedIndex
	w.meshOwnerNode[clonedIndex] = nodeIndex
	logGltfDebug("共有メッシュを複製しました: mesh=%d clone=%d node=%d", meshIndex, clonedIndex, nodeIndex)
	return clonedIndex, nil
}

// appendBakedPositions はワールドZ-up座標をY-upへ戻したPOSITION accessorを追記する。
func (w *glbDocumentWriter) appendBakedPositions(positions []mmath.Vec3) int {
	positionBytes := make([]byte, 0, len(positions)*3*4)
	minV := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	maxV := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, position := range positions {
		converted := convertZUpToGltf(position)
		for c, value := range []float64{converted.X, converted.Y, converted.Z} {
			value = float64(float32(value))
			positionBytes = appendFloat32(positionBytes, value)
			minV[c] = math.Min(minV[c], value)
			maxV[c] = math.Max(maxV[c], value)
		}
	}
	viewIndex := w.appendBinData(positionBytes, gltfBufferViewTargetArrayBuffer)
	return w.appendRootArray("accessors", map[string]any{
		"bufferView":    viewIndex,
		"componentType": gltfComponentTypeFloat,
		"count":         len(positions),
		"type":          "VEC3",
		"min":           []any{minV[0], minV[1], minV[2]},
		"max":           []any{maxV[0], maxV[1], maxV[2]},
	})
}

// appendVertexSkinAttributes はJOINTS_0/WEIGHTS_0 accessorを追記する。
// 影響数が4を超える頂点はウェイト上位4件へ切り詰めて再正規化する。
func (w *glbDocumentWriter) appendVertexSkinAttributes(
	part *model.MeshPart,
	jointIndexByBoneName map[string]int,
) (int, int, error) {
	if len(part.Weights) != len(part.Positions) {
		return -1, -1, io_common.NewIoParseFailed(
			"ウェイト数が頂点数と一致しません: part=%s weights=%d vertices=%d",
			nil, part.Name, len(part.Weights), len(part.Positions),
		)
	}

	jointBytes := make([]byte, 0, len(part.Weights)*4*2)
	weightBytes := make([]byte, 0, len(part.Weights)*4*4)
	truncatedVertices := 0
	for _, influences := range part.Weights {
		joints, weights, truncated := packVertexInfluences(influences, jointIndexByBoneName)
		if truncated {
			truncatedVertices++
		}
		for c := 0; c < exportMaxJointsPerVertex; c++ {
			jointBytes = binary.LittleEndian.AppendUint16(jointBytes, joints[c])
			weightBytes = appendFloat32(weightBytes, weights[c])
		}
	}
	if truncatedVertices > 0 {
		logGltfWarn("影響数4超の頂点を上位4件へ切り詰めました: part=%s vertices=%d", part.Name, truncatedVertices)
	}

	jointViewIndex := w.appendBinData(jointBytes, gltfBufferViewTargetArrayBuffer)
	jointAccessor := w.appendRootArray("accessors", map[string]any{
		"bufferView":    jointViewIndex,
		"componentType": gltfComponentTypeUnsignedShort,
		"count":         len(part.Weights),
		"type":          "VEC4",
	})
	weightViewIndex := w.appendBinData(weightBytes, gltfBufferViewTargetArrayBuffer)
	weightAccessor := w.appendRootArray("accessors", map[string]any{
		"bufferView":    weightViewIndex,
		"componentType": gltfComponentTypeFloat,
		"count":         len(part.Weights),
		"type":          "VEC4",
	})
	return jointAccessor, weightAccessor, nil
}

// packVertexInfluences は1頂点の影響をJOINTS/WEIGHTS 4要素へ詰め替える。
func packVertexInfluences(
	influences []model.BoneWeight,
	jointIndexByBoneName map[string]int,
) ([exportMaxJointsPerVertex]uint16, [exportMaxJointsPerVertex]float64, bool) {
	joints := [exportMaxJointsPerVertex]uint16{}
	weights := [exportMaxJointsPerVertex]float64{}

	resolved := make([]model.BoneWeight, 0, len(influences))
	for _, influence := range influences {
		if influence.Weight <= 0 {
			continue
		}
		if _, ok := jointIndexByBoneName[influence.BoneName]; !ok {
			continue
		}
		resolved = append(resolved, influence)
	}
	// 上位4件を選ぶ(件数が少ないため選択ソートで十分)。
	for i := 0; i < len(resolved); i++ {
		maxAt := i
		for j := i + 1; j < len(resolved); j++ {
			if resolved[j].Weight > resolved[maxAt].Weight {
				maxAt = j
			}
		}
		resolved[i], resolved[maxAt] = resolved[maxAt], resolved[i]
	}

	truncated := len(resolved) > exportMaxJointsPerVertex
	keep := len(resolved)
	if keep > exportMaxJointsPerVertex {
		keep = exportMaxJointsPerVertex
	}
	total := 0.0
	for i := 0; i < keep; i++ {
		total += resolved[i].Weight
	}
	if total <= 0 {
		return joints, weights, truncated
	}
	for i := 0; i < keep; i++ {
		joints[i] = uint16(jointIndexByBoneName[resolved[i].BoneName])
		weights[i] = resolved[i].Weight / total
	}
	return joints, weights, truncated
}

// updateBufferLength はbuffers[0].byteLengthを追記後のBIN長へ更新する。
func (w *glbDocumentWriter) updateBufferLength() {
	w.binData = padBytes(w.binData, 0x00)
	buffers := w.rootArray("buffers")
	if len(buffers) == 0 {
		buffers = append(buffers, map[string]any{"byteLength": len(w.binData)})
		w.root["buffers"] = buffers
		return
	}
	if buffer, ok := buffers[0].(map[string]any); ok {
		buffer["byteLength"] = len(w.binData)
	}
}

// encodeGLB はJSON/BINチャンクをGLBコンテナへ組み立てる。
func (w *glbDocumentWriter) encodeGLB() ([]byte, error) {
	jsonBytes, err := json.Marshal(w.root)
	if err != nil {
		return nil, io_common.NewIoParseFailed("GLB JSONチャンクの生成に失敗しました", err)
	}
	jsonBytes = padBytes(jsonBytes, 0x20)
	binBytes := padBytes(w.binData, 0x00)

	totalLength := glbHeaderLength + glbChunkHeadSize + len(jsonBytes)
	if len(binBytes) > 0 {
		totalLength += glbChunkHeadSize + len(binBytes)
	}

	out := make([]byte, 0, totalLength)
	out = binary.LittleEndian.AppendUint32(out, glbMagic)
	out = binary.LittleEndian.AppendUint32(out, 2)
	out = binary.LittleEndian.AppendUint32(out, uint32(totalLength))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(jsonBytes)))
	out = binary.LittleEndian.AppendUint32(out, glbJSONChunkType)
	out = append(out, jsonBytes...)
	if len(binBytes) > 0 {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(binBytes)))
		out = binary.LittleEndian.AppendUint32(out, glbBINChunkType)
		out = append(out, binBytes...)
	}
	return out, nil
}

// cloneJSONValue はJSON経由で値を複製する。
func cloneJSONValue(value any) (any, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var cloned any
	if err := json.Unmarshal(b, &cloned); err != nil {
		return nil, err
	}
	return cloned, nil
}

// padBytes は長さが4の倍数になるようパディングを追加する。
func padBytes(data []byte, pad byte) []byte {
	for len(data)%4 != 0 {
		data = append(data, pad)
	}
	return data
}

// appendFloat32 はfloat64をリトルエンディアンfloat32として追記する。
func appendFloat32(data []byte, value float64) []byte {
	return binary.LittleEndian.AppendUint32(data, math.Float32bits(float32(value)))
}
