// 指示: miu200521358
package model

// BoneWeight は1頂点に対する1ボーンの影響度を表す。
type BoneWeight struct {
	BoneName string
	Weight   float64
}

// VertexWeights は頂点ごとのボーン影響度一覧を表す。
// 外側スライスは頂点index順、内側は正規化済みウェイト(合計1.0)とする。
type VertexWeights [][]BoneWeight

// NewVertexWeights は頂点数分の空ウェイト表を生成する。
func NewVertexWeights(vertexCount int) VertexWeights {
	if vertexCount < 0 {
		vertexCount = 0
	}
	return make(VertexWeights, vertexCount)
}

// WeightedBoneCount はゼロでないウェイトを1頂点以上持つボーン数を返す。
// ウェイト検証(空結果検出)の判定指標として用いる。
func (w VertexWeights) WeightedBoneCount() int {
	usedBones := map[string]struct{}{}
	for _, influences := range w {
		for _, influence := range influences {
			if influence.Weight > 0 {
				usedBones[influence.BoneName] = struct{}{}
			}
		}
	}
	return len(usedBones)
}

// MaxInfluenceCount は1頂点あたりの最大影響ボーン数を返す。
func (w VertexWeights) MaxInfluenceCount() int {
	maxCount := 0
	for _, influences := range w {
		count := 0
		for _, influence := range influences {
			if influence.Weight > 0 {
				count++
			}
		}
		if count > maxCount {
			maxCount = count
		}
	}
	return maxCount
}
