// 指示: miu200521358
package gltf

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/miu200521358/mu_autorig/pkg/adapter/io_common"
	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
	"github.com/miu200521358/mu_autorig/pkg/shared/base/logging"
)

const (
	glbHeaderLength   = 12
	glbChunkHeadSize  = 8
	glbMagic          = 0x46546C67
	glbJSONChunkType  = 0x4E4F534A
	glbBINChunkType   = 0x004E4942
	glbMinValidLength = glbHeaderLength + glbChunkHeadSize
)

// GltfRepository はGLB入力の読み込み契約を表す。
type GltfRepository struct{}

// NewGltfRepository はGltfRepositoryを生成する。
func NewGltfRepository() *GltfRepository {
	return &GltfRepository{}
}

// CanLoad は拡張子に応じて読み込み可否を判定する。
func (r *GltfRepository) CanLoad(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".glb")
}

// InferName はパスから表示名を推定する。
func (r *GltfRepository) InferName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == "" {
		return base
	}
	return strings.TrimSuffix(base, ext)
}

// Load はGLBを読み込みRigModelを構築する。
// 頂点座標はワールド変換を適用した上でZ-up右手系へ変換する。
func (r *GltfRepository) Load(path string) (*model.RigModel, error) {
	if !r.CanLoad(path) {
		return nil, io_common.NewIoExtInvalid(path, nil)
	}
	loadTargetName := filepath.Base(path)
	logGltfInfo("GLB読込開始: file=%s", loadTargetName)

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, io_common.NewIoFileNotFound(path, err)
		}
		return nil, io_common.NewIoParseFailed("GLBファイルの読み取りに失敗しました", err)
	}
	logGltfInfo("GLB読込ステップ: ファイル読み取り完了 bytes=%d", len(b))

	jsonChunk, binChunk, err := parseGLBChunks(b)
	if err != nil {
		return nil, err
	}
	logGltfInfo("GLB読込ステップ: チャンク解析完了 jsonBytes=%d binBytes=%d", len(jsonChunk), len(binChunk))

	doc := gltfDocument{}
	if err := json.Unmarshal(jsonChunk, &doc); err != nil {
		return nil, io_common.NewIoParseFailed("GLB JSONチャンクの解析に失敗しました", err)
	}
	logGltfInfo(
		"GLB読込ステップ: JSON解析完了 nodes=%d meshes=%d skins=%d accessors=%d",
		len(doc.Nodes),
		len(doc.Meshes),
		len(doc.Skins),
		len(doc.Accessors),
	)

	parentIndexes, err := buildNodeParentIndexes(doc.Nodes)
	if err != nil {
		return nil, err
	}
	worldMats, err := buildNodeWorldMatrices(doc.Nodes, parentIndexes)
	if err != nil {
		return nil, err
	}
	logGltfInfo("GLB読込ステップ: ノードワールド変換計算完了")

	modelData := model.NewRigModel()
	modelData.SetPath(path)
	modelData.SetName(r.InferName(path))
	modelData.JSONChunk = jsonChunk
	modelData.BinChunk = binChunk

	if err := appendMeshParts(modelData, &doc, binChunk, worldMats); err != nil {
		return nil, err
	}
	logGltfInfo(
		"GLB読込ステップ: メッシュ抽出完了 parts=%d vertices=%d",
		len(modelData.Parts),
		modelData.TotalVertexCount(),
	)

	appendSkeletonCandidates(modelData, &doc, parentIndexes, worldMats)
	logGltfInfo("GLB読込完了: file=%s candidates=%d", loadTargetName, len(modelData.SkeletonCandidates))
	return modelData, nil
}

// logGltfInfo はGLB入出力のINFOログを出力する。
func logGltfInfo(format string, params ...any) {
	logger := logging.DefaultLogger()
	if logger == nil {
		return
	}
	logger.Info(format, params...)
}

// logGltfDebug はGLB入出力のデバッグログを出力する。
func logGltfDebug(format string, params ...any) {
	logger := logging.DefaultLogger()
	if logger == nil {
		return
	}
	logger.Debug(format, params...)
}

// logGltfWarn はGLB入出力の警告ログを出力する。
func logGltfWarn(format string, params ...any) {
	logger := logging.DefaultLogger()
	if logger == nil {
		return
	}
	logger.Warn(format, params...)
}

// gltfDocument は読み込みに必要なglTFトップレベル要素を表す。
type gltfDocument struct {
	Asset       gltfAsset        `json:"asset"`
	Buffers     []gltfBuffer     `json:"buffers"`
	BufferViews []gltfBufferView `json:"bufferViews"`
	Accessors   []gltfAccessor   `json:"accessors"`
	Meshes      []gltfMesh       `json:"meshes"`
	Skins       []gltfSkin       `json:"skins"`
	Nodes       []gltfNode       `json:"nodes"`
	Scenes      []gltfScene      `json:"scenes"`
	Scene       int              `json:"scene"`
}

// gltfAsset はglTF asset要素を表す。
type gltfAsset struct {
	Version   string `json:"version"`
	Generator string `json:"generator"`
}

// gltfScene はglTF scene要素を表す。
type gltfScene struct {
	Nodes []int `json:"nodes"`
}

// gltfNode はglTF node要素を表す。
type gltfNode struct {
	Name        string    `json:"name"`
	Mesh        *int      `json:"mesh"`
	Skin        *int      `json:"skin"`
	Children    []int     `json:"children"`
	Matrix      []float64 `json:"matrix"`
	Translation []float64 `json:"translation"`
	Rotation    []float64 `json:"rotation"`
	Scale       []float64 `json:"scale"`
}

// gltfBuffer はglTF buffer要素を表す。
type gltfBuffer struct {
	ByteLength int `json:"byteLength"`
}

// gltfBufferView はglTF bufferView要素を表す。
type gltfBufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
	ByteStride int `json:"byteStride"`
}

// gltfAccessor はglTF accessor要素を表す。
type gltfAccessor struct {
	BufferView    *int   `json:"bufferView"`
	ByteOffset    int    `json:"byteOffset"`
	ComponentType int    `json:"componentType"`
	Count         int    `json:"count"`
	Type          string `json:"type"`
	Normalized    bool   `json:"normalized"`
}

// gltfMesh はglTF mesh要素を表す。
type gltfMesh struct {
	Name       string          `json:"name"`
	Primitives []gltfPrimitive `json:"primitives"`
}

// gltfPrimitive はglTF mesh primitive要素を表す。
type gltfPrimitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices"`
	Mode       *int           `json:"mode"`
}

// gltfSkin はglTF skin要素を表す。
type gltfSkin struct {
	Name     string `json:"name"`
	Joints   []int  `json:"joints"`
	Skeleton *int   `json:"skeleton"`
}

// parseGLBChunks はGLBバイト列からJSON/BINチャンクを抽出する。
func parseGLBChunks(sourceBytes []byte) ([]byte, []byte, error) {
	if len(sourceBytes) < glbMinValidLength {
		return nil, nil, io_common.NewIoParseFailed("GLBヘッダが不足しています", nil)
	}
	if binary.LittleEndian.Uint32(sourceBytes[0:4]) != glbMagic {
		return nil, nil, io_common.NewIoParseFailed("GLBマジックが不正です", nil)
	}
	version := binary.LittleEndian.Uint32(sourceBytes[4:8])
	if version != 2 {
		return nil, nil, io_common.NewIoFormatNotSupported("GLBバージョンが未対応です: %d", nil, version)
	}
	totalLength := int(binary.LittleEndian.Uint32(sourceBytes[8:12]))
	if totalLength <= 0 || totalLength > len(sourceBytes) {
		return nil, nil, io_common.NewIoParseFailed("GLB全体長が不正です", nil)
	}

	var jsonChunk []byte
	var binChunk []byte
	offset := glbHeaderLength
	for offset+glbChunkHeadSize <= totalLength {
		chunkLength := int(binary.LittleEndian.Uint32(sourceBytes[offset : offset+4]))
		chunkType := binary.LittleEndian.Uint32(sourceBytes[offset+4 : offset+8])
		chunkStart := offset + glbChunkHeadSize
		chunkEnd := chunkStart + chunkLength
		if chunkLength < 0 || chunkEnd > totalLength {
			return nil, nil, io_common.NewIoParseFailed("GLBチャンク長が不正です", nil)
		}
		chunkBytes := sourceBytes[chunkStart:chunkEnd]
		switch chunkType {
		case glbJSONChunkType:
			if len(jsonChunk) == 0 {
				jsonChunk = append([]byte(nil), chunkBytes...)
			}
		case glbBINChunkType:
			if len(binChunk) == 0 {
				binChunk = append([]byte(nil), chunkBytes...)
			}
		}
		offset = chunkEnd
	}
	if len(jsonChunk) == 0 {
		return nil, nil, io_common.NewIoParseFailed("GLB JSONチャンクが見つかりません", nil)
	}
	return jsonChunk, binChunk, nil
}

// buildNodeParentIndexes はnode配列から親インデックス配列を生成する。
func buildNodeParentIndexes(nodes []gltfNode) ([]int, error) {
	parentIndexes := make([]int, len(nodes))
	for i := range parentIndexes {
		parentIndexes[i] = -1
	}
	for parentIndex, node := range nodes {
		for _, childIndex := range node.Children {
			if childIndex < 0 || childIndex >= len(nodes) {
				return nil, io_common.NewIoParseFailed("node.children のindexが不正です: %d", nil, childIndex)
			}
			if parentIndexes[childIndex] == -1 {
				parentIndexes[childIndex] = parentIndex
			}
		}
	}
	return parentIndexes, nil
}

// buildNodeWorldMatrices はnodeのローカル変換からワールド行列を算出する。
func buildNodeWorldMatrices(nodes []gltfNode, parents []int) ([]mmath.Mat4, error) {
	worldMats := make([]mmath.Mat4, len(nodes))
	state := make([]int, len(nodes))
	for i := range nodes {
		if err := resolveNodeWorldMatrix(nodes, parents, i, state, worldMats); err != nil {
			return nil, err
		}
	}
	return worldMats, nil
}

// resolveNodeWorldMatrix はnodeのワールド行列を再帰的に解決する。
func resolveNodeWorldMatrix(
	nodes []gltfNode,
	parents []int,
	nodeIndex int,
	state []int,
	worldMats []mmath.Mat4,
) error {
	if nodeIndex < 0 || nodeIndex >= len(nodes) {
		return io_common.NewIoParseFailed("node index が不正です: %d", nil, nodeIndex)
	}
	if state[nodeIndex] == 2 {
		return nil
	}
	if state[nodeIndex] == 1 {
		return io_common.NewIoParseFailed("node親子関係に循環があります: %d", nil, nodeIndex)
	}
	state[nodeIndex] = 1
	local, err := nodeLocalMatrix(nodes[nodeIndex])
	if err != nil {
		return err
	}
	parentIndex := parents[nodeIndex]
	if parentIndex >= 0 {
		if err := resolveNodeWorldMatrix(nodes, parents, parentIndex, state, worldMats); err != nil {
			return err
		}
		worldMats[nodeIndex] = worldMats[parentIndex].Muled(local)
	} else {
		worldMats[nodeIndex] = local
	}
	state[nodeIndex] = 2
	return nil
}

// nodeLocalMatrix はnode要素からローカル行列を生成する。
func nodeLocalMatrix(node gltfNode) (mmath.Mat4, error) {
	if len(node.Matrix) > 0 {
		mat, ok := mmath.NewMat4FromColumnMajor(node.Matrix)
		if !ok {
			return mmath.NewMat4(), io_common.NewIoParseFailed("node.matrix の要素数が不正です: %d", nil, len(node.Matrix))
		}
		return mat, nil
	}

	translation, err := parseVec3(node.Translation, mmath.ZERO_VEC3, "node.translation")
	if err != nil {
		return mmath.NewMat4(), err
	}
	scale, err := parseVec3(node.Scale, mmath.ONE_VEC3, "node.scale")
	if err != nil {
		return mmath.NewMat4(), err
	}
	rotation, err := parseQuaternion(node.Rotation)
	if err != nil {
		return mmath.NewMat4(), err
	}
	return mmath.NewMat4FromTRS(translation, rotation, scale), nil
}

// parseVec3 はスライスをVec3へ変換する。
func parseVec3(values []float64, defaultValue mmath.Vec3, label string) (mmath.Vec3, error) {
	if len(values) == 0 {
		return defaultValue, nil
	}
	if len(values) != 3 {
		return mmath.ZERO_VEC3, io_common.NewIoParseFailed("%s の要素数が不正です: %d", nil, label, len(values))
	}
	return mmath.NewVec3(values[0], values[1], values[2]), nil
}

// parseQuaternion はスライスをQuaternionへ変換する。
func parseQuaternion(values []float64) (mmath.Quaternion, error) {
	if len(values) == 0 {
		return mmath.NewQuaternion(), nil
	}
	if len(values) != 4 {
		return mmath.NewQuaternion(), io_common.NewIoParseFailed("node.rotation の要素数が不正です: %d", nil, len(values))
	}
	return mmath.NewQuaternionByValues(values[0], values[1], values[2], values[3]).Normalized(), nil
}

// convertGltfToZUp はglTFのY-up右手系をZ-up右手系へ変換する。
func convertGltfToZUp(v mmath.Vec3) mmath.Vec3 {
	return mmath.NewVec3(v.X, -v.Z, v.Y)
}

// convertZUpToGltf はZ-up右手系をglTFのY-up右手系へ変換する。
func convertZUpToGltf(v mmath.Vec3) mmath.Vec3 {
	return mmath.NewVec3(v.X, v.Z, -v.Y)
}

// resolvePartName はメッシュ名とindexからパーツ名を生成する。
func resolvePartName(mesh gltfMesh, meshIndex int, primitiveIndex int) string {
	meshName := strings.TrimSpace(mesh.Name)
	if meshName == "" {
		meshName = fmt.Sprintf("mesh_%03d", meshIndex)
	}
	return fmt.Sprintf("%s_%03d", meshName, primitiveIndex)
}

// appendMeshParts はメッシュ付きnodeのprimitiveをMeshPartへ変換する。
func appendMeshParts(
	modelData *model.RigModel,
	doc *gltfDocument,
	binChunk []byte,
	worldMats []mmath.Mat4,
) error {
	for nodeIndex, node := range doc.Nodes {
		if node.Mesh == nil {
			continue
		}
		meshIndex := *node.Mesh
		if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
			return io_common.NewIoParseFailed("node.mesh のindexが不正です: %d", nil, meshIndex)
		}
		mesh := doc.Meshes[meshIndex]
		for primitiveIndex, primitive := range mesh.Primitives {
			part, err := buildMeshPart(doc, binChunk, nodeIndex, meshIndex, primitiveIndex, mesh, primitive, worldMats[nodeIndex])
			if err != nil {
				return err
			}
			if part == nil {
				continue
			}
			modelData.Parts = append(modelData.Parts, part)
		}
	}
	return nil
}

// buildMeshPart はprimitiveをワールドZ-up座標のMeshPartへ変換する。
func buildMeshPart(
	doc *gltfDocument,
	binChunk []byte,
	nodeIndex int,
	meshIndex int,
	primitiveIndex int,
	mesh gltfMesh,
	primitive gltfPrimitive,
	worldMat mmath.Mat4,
) (*model.MeshPart, error) {
	positionAccessor, ok := primitive.Attributes["POSITION"]
	if !ok {
		return nil, io_common.NewIoParseFailed("mesh.primitive に POSITION がありません", nil)
	}
	positionValues, err := readAccessorFloatValues(doc, positionAccessor, binChunk)
	if err != nil {
		return nil, io_common.NewIoParseFailed("POSITION属性の読み取りに失敗しました(accessor=%d)", err, positionAccessor)
	}
	if len(positionValues) == 0 {
		return nil, nil
	}

	positions := make([]mmath.Vec3, len(positionValues))
	for i, row := range positionValues {
		if len(row) < 3 {
			return nil, io_common.NewIoParseFailed("POSITION の要素数が不正です", nil)
		}
		local := mmath.NewVec3(row[0], row[1], row[2])
		positions[i] = convertGltfToZUp(worldMat.MulVec3(local))
	}

	indices, err := readPrimitiveIndices(doc, primitive, len(positions), binChunk)
	if err != nil {
		return nil, err
	}
	mode := gltfPrimitiveModeTriangles
	if primitive.Mode != nil {
		mode = *primitive.Mode
	}
	triangles := triangulateIndices(indices, mode)
	faces := make([][3]int, 0, len(triangles))
	for _, tri := range triangles {
		if tri[0] < 0 || tri[1] < 0 || tri[2] < 0 {
			continue
		}
		if tri[0] >= len(positions) || tri[1] >= len(positions) || tri[2] >= len(positions) {
			return nil, io_common.NewIoParseFailed("indices が頂点数を超えています", nil)
		}
		faces = append(faces, tri)
	}

	return &model.MeshPart{
		Name:           resolvePartName(mesh, meshIndex, primitiveIndex),
		NodeIndex:      nodeIndex,
		MeshIndex:      meshIndex,
		PrimitiveIndex: primitiveIndex,
		Positions:      positions,
		Faces:          faces,
	}, nil
}

// appendSkeletonCandidates は入力シーンのskinごとにスケルトン候補を抽出する。
// joint名・親子・ワールド座標が壊れているskinは警告の上で読み飛ばす。
func appendSkeletonCandidates(
	modelData *model.RigModel,
	doc *gltfDocument,
	parentIndexes []int,
	worldMats []mmath.Mat4,
) {
	for skinIndex, skin := range doc.Skins {
		skeleton, err := buildSkeletonFromSkin(doc, skinIndex, skin, parentIndexes, worldMats)
		if err != nil {
			logGltfWarn("skin %d のスケルトン抽出に失敗したため読み飛ばします: %s", skinIndex, err.Error())
			continue
		}
		modelData.SkeletonCandidates = append(modelData.SkeletonCandidates, skeleton)
	}
}

// buildSkeletonFromSkin はskinのjoint一覧からスケルトンを構築する。
// jointのワールド座標をZ-upへ変換してボーンheadとし、tailは最初の子jointか親方向オフセットで補う。
func buildSkeletonFromSkin(
	doc *gltfDocument,
	skinIndex int,
	skin gltfSkin,
	parentIndexes []int,
	worldMats []mmath.Mat4,
) (*model.Skeleton, error) {
	if len(skin.Joints) == 0 {
		return nil, fmt.Errorf("skin にjointがありません")
	}
	jointSet := map[int]struct{}{}
	for _, jointNodeIndex := range skin.Joints {
		if jointNodeIndex < 0 || jointNodeIndex >= len(doc.Nodes) {
			return nil, fmt.Errorf("skin.joints のindexが不正です: %d", jointNodeIndex)
		}
		jointSet[jointNodeIndex] = struct{}{}
	}

	skeletonName := strings.TrimSpace(skin.Name)
	if skeletonName == "" {
		skeletonName = fmt.Sprintf("skin_%03d", skinIndex)
	}
	skeleton := model.NewSkeleton(skeletonName)
	boneIndexByNode := map[int]int{}
	for _, jointNodeIndex := range skin.Joints {
		if err := appendJointBone(
			skeleton,
			doc,
			jointNodeIndex,
			jointSet,
			parentIndexes,
			worldMats,
			boneIndexByNode,
		); err != nil {
			return nil, err
		}
	}
	if err := skeleton.Validate(); err != nil {
		return nil, err
	}
	return skeleton, nil
}

// appendJointBone はjointをボーンとして登録する。親jointを先に登録する。
func appendJointBone(
	skeleton *model.Skeleton,
	doc *gltfDocument,
	jointNodeIndex int,
	jointSet map[int]struct{},
	parentIndexes []int,
	worldMats []mmath.Mat4,
	boneIndexByNode map[int]int,
) error {
	if _, done := boneIndexByNode[jointNodeIndex]; done {
		return nil
	}

	parentJointNodeIndex := findAncestorJoint(jointNodeIndex, jointSet, parentIndexes)
	if parentJointNodeIndex >= 0 {
		if err := appendJointBone(
			skeleton,
			doc,
			parentJointNodeIndex,
			jointSet,
			parentIndexes,
			worldMats,
			boneIndexByNode,
		); err != nil {
			return err
		}
	}

	var parentBone *model.Bone
	if parentJointNodeIndex >= 0 {
		parentBone, _ = skeleton.Bones.Get(boneIndexByNode[parentJointNodeIndex])
	}

	node := doc.Nodes[jointNodeIndex]
	head := convertGltfToZUp(worldMats[jointNodeIndex].Translation())
	tail := resolveJointTail(doc, node, head, parentBone, jointSet, worldMats)
	boneName := strings.TrimSpace(node.Name)
	if boneName == "" {
		boneName = fmt.Sprintf("joint_%03d", jointNodeIndex)
	}

	bone := model.NewBone(boneName, head, tail)
	if parentJointNodeIndex >= 0 {
		bone.ParentIndex = boneIndexByNode[parentJointNodeIndex]
	}
	boneIndex := skeleton.Bones.AppendRaw(bone)
	if boneIndex < 0 {
		return fmt.Errorf("joint名が重複しています: %s", boneName)
	}
	boneIndexByNode[jointNodeIndex] = boneIndex
	return nil
}

// findAncestorJoint はnodeの祖先のうちjoint集合に含まれる最初のnodeを返す。
func findAncestorJoint(nodeIndex int, jointSet map[int]struct{}, parentIndexes []int) int {
	current := parentIndexes[nodeIndex]
	for current >= 0 {
		if _, ok := jointSet[current]; ok {
			return current
		}
		current = parentIndexes[current]
	}
	return -1
}

// resolveJointTail はjointのtail位置を決定する。
// 最初の子jointのワールド座標を優先し、無い場合は親方向の半長オフセットで補う。
func resolveJointTail(
	doc *gltfDocument,
	node gltfNode,
	head mmath.Vec3,
	parentBone *model.Bone,
	jointSet map[int]struct{},
	worldMats []mmath.Mat4,
) mmath.Vec3 {
	for _, childNodeIndex := range node.Children {
		if childNodeIndex < 0 || childNodeIndex >= len(doc.Nodes) {
			continue
		}
		if _, ok := jointSet[childNodeIndex]; !ok {
			continue
		}
		return convertGltfToZUp(worldMats[childNodeIndex].Translation())
	}

	if parentBone == nil {
		return head.Added(mmath.NewVec3(0, 0, 0.1))
	}
	direction := head.Subed(parentBone.Head)
	length := direction.Length()
	if length <= 0 {
		return head.Added(mmath.NewVec3(0, 0, 0.1))
	}
	return head.Added(direction.Normalized().MuledScalar(length * 0.5))
}
