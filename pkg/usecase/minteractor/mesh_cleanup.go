// 指示: miu200521358
package minteractor

import (
	"fmt"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
	"github.com/miu200521358/mu_autorig/pkg/domain/model"
)

const (
	// cleanupMergeDistance は同一視する頂点間距離を表す。
	cleanupMergeDistance = 1e-6
	// cleanupDegenerateArea は退化三角形とみなす面積閾値を表す。
	cleanupDegenerateArea = 1e-6
)

// cleanedMeshPart はクリーニング済みメッシュと元頂点への対応を表す。
type cleanedMeshPart struct {
	// Part はクリーニング済みメッシュを表す。
	Part *model.MeshPart
	// OriginalToCleaned は元頂点index→クリーニング後indexの対応を表す。
	OriginalToCleaned []int
}

// cleanupMeshPart は重複頂点の結合・退化面の除去・孤立頂点の削除を行う。
// 外部ソルバ向けの位相修復で、元メッシュは変更しない。
func cleanupMeshPart(part *model.MeshPart) *cleanedMeshPart {
	if part == nil {
		return nil
	}

	// 距離1e-6未満の頂点を同一視するため、座標を丸めたキーで結合する
	mergedIndexByKey := map[[3]int64]int{}
	originalToMerged := make([]int, len(part.Positions))
	mergedPositions := part.Positions[:0:0]
	for i, position := range part.Positions {
		key := [3]int64{
			int64(position.X / cleanupMergeDistance),
			int64(position.Y / cleanupMergeDistance),
			int64(position.Z / cleanupMergeDistance),
		}
		mergedIndex, exists := mergedIndexByKey[key]
		if !exists {
			mergedIndex = len(mergedPositions)
			mergedPositions = append(mergedPositions, position)
			mergedIndexByKey[key] = mergedIndex
		}
		originalToMerged[i] = mergedIndex
	}

	faces := make([][3]int, 0, len(part.Faces))
	for _, face := range part.Faces {
		merged := [3]int{
			originalToMerged[face[0]],
			originalToMerged[face[1]],
			originalToMerged[face[2]],
		}
		if merged[0] == merged[1] || merged[1] == merged[2] || merged[2] == merged[0] {
			continue
		}
		if triangleAreaSquared(mergedPositions[merged[0]], mergedPositions[merged[1]], mergedPositions[merged[2]]) <
			cleanupDegenerateArea*cleanupDegenerateArea {
			continue
		}
		faces = append(faces, merged)
	}

	// 面に参照されない孤立頂点を除去する
	usedByFace := make([]bool, len(mergedPositions))
	for _, face := range faces {
		usedByFace[face[0]] = true
		usedByFace[face[1]] = true
		usedByFace[face[2]] = true
	}
	mergedToCompact := make([]int, len(mergedPositions))
	compactPositions := mergedPositions[:0:0]
	for i, position := range mergedPositions {
		if !usedByFace[i] {
			mergedToCompact[i] = -1
			continue
		}
		mergedToCompact[i] = len(compactPositions)
		compactPositions = append(compactPositions, position)
	}
	for i := range faces {
		faces[i] = [3]int{
			mergedToCompact[faces[i][0]],
			mergedToCompact[faces[i][1]],
			mergedToCompact[faces[i][2]],
		}
	}

	originalToCleaned := make([]int, len(part.Positions))
	for i, mergedIndex := range originalToMerged {
		originalToCleaned[i] = mergedToCompact[mergedIndex]
	}

	cleaned := &model.MeshPart{
		Name:           fmt.Sprintf("%s(cleaned)", part.Name),
		NodeIndex:      part.NodeIndex,
		MeshIndex:      part.MeshIndex,
		PrimitiveIndex: part.PrimitiveIndex,
		Positions:      compactPositions,
		Faces:          faces,
	}
	logRigDebug("メッシュクリーニング: part=%s vertices=%d->%d faces=%d->%d",
		part.Name, len(part.Positions), len(compactPositions), len(part.Faces), len(faces))
	return &cleanedMeshPart{
		Part:              cleaned,
		OriginalToCleaned: originalToCleaned,
	}
}

// expandCleanedWeights はクリーニング後メッシュのウェイトを元頂点配列へ展開する。
// 孤立頂点として除去された元頂点は空のまま残す。
func expandCleanedWeights(cleaned *cleanedMeshPart, weights model.VertexWeights) model.VertexWeights {
	if cleaned == nil {
		return nil
	}
	expanded := model.NewVertexWeights(len(cleaned.OriginalToCleaned))
	for originalIndex, cleanedIndex := range cleaned.OriginalToCleaned {
		if cleanedIndex < 0 || cleanedIndex >= len(weights) {
			continue
		}
		row := weights[cleanedIndex]
		if len(row) == 0 {
			continue
		}
		copied := make([]model.BoneWeight, len(row))
		copy(copied, row)
		expanded[originalIndex] = copied
	}
	return expanded
}

// triangleAreaSquared は三角形面積の2乗(×4)を返す。退化判定のみに使う。
func triangleAreaSquared(a, b, c mmath.Vec3) float64 {
	ab := b.Subed(a)
	ac := c.Subed(a)
	cross := ab.Cross(ac)
	return cross.LengthSquared()
}
