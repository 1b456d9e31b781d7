// 指示: miu200521358
package model

import (
	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
)

// MeshPart は1プリミティブ分のメッシュ(ワールド座標Z-up)を表す。
type MeshPart struct {
	Name           string
	NodeIndex      int
	MeshIndex      int
	PrimitiveIndex int
	Positions      []mmath.Vec3
	Faces          [][3]int
	Weights        VertexWeights
}

// VertexCount は頂点数を返す。
func (p *MeshPart) VertexCount() int {
	if p == nil {
		return 0
	}
	return len(p.Positions)
}

// Bounds は頂点のバウンディングボックスを返す。
func (p *MeshPart) Bounds() (mmath.Vec3, mmath.Vec3, bool) {
	if p == nil || len(p.Positions) == 0 {
		return mmath.ZERO_VEC3, mmath.ZERO_VEC3, false
	}
	minV := p.Positions[0]
	maxV := p.Positions[0]
	for _, position := range p.Positions[1:] {
		minV = minV.MinElements(position)
		maxV = maxV.MaxElements(position)
	}
	return minV, maxV, true
}

// RigModel は読み込んだシーンとリグ付与結果を表す。
type RigModel struct {
	path      string
	name      string
	JSONChunk []byte
	BinChunk  []byte
	Parts     []*MeshPart
	// SkeletonCandidates は入力シーンのskinから抽出したスケルトン候補を保持する。
	SkeletonCandidates []*Skeleton
	// Skeleton はフィット済みの出力対象スケルトンを保持する。
	Skeleton *Skeleton
}

// NewRigModel は空のRigModelを生成する。
func NewRigModel() *RigModel {
	return &RigModel{
		Parts:              []*MeshPart{},
		SkeletonCandidates: []*Skeleton{},
	}
}

// Path はモデルのファイルパスを返す。
func (m *RigModel) Path() string {
	if m == nil {
		return ""
	}
	return m.path
}

// SetPath はモデルのファイルパスを設定する。
func (m *RigModel) SetPath(path string) {
	if m == nil {
		return
	}
	m.path = path
}

// Name はモデル表示名を返す。
func (m *RigModel) Name() string {
	if m == nil {
		return ""
	}
	return m.name
}

// SetName はモデル表示名を設定する。
func (m *RigModel) SetName(name string) {
	if m == nil {
		return
	}
	m.name = name
}

// Bounds は全パーツ頂点のバウンディングボックスを返す。
func (m *RigModel) Bounds() (mmath.Vec3, mmath.Vec3, bool) {
	if m == nil {
		return mmath.ZERO_VEC3, mmath.ZERO_VEC3, false
	}
	found := false
	minV := mmath.ZERO_VEC3
	maxV := mmath.ZERO_VEC3
	for _, part := range m.Parts {
		partMin, partMax, ok := part.Bounds()
		if !ok {
			continue
		}
		if !found {
			minV = partMin
			maxV = partMax
			found = true
			continue
		}
		minV = minV.MinElements(partMin)
		maxV = maxV.MaxElements(partMax)
	}
	return minV, maxV, found
}

// Height は全パーツのZ方向高さを返す。
func (m *RigModel) Height() float64 {
	minV, maxV, ok := m.Bounds()
	if !ok {
		return 0
	}
	return maxV.Z - minV.Z
}

// TotalVertexCount は全パーツの合計頂点数を返す。
func (m *RigModel) TotalVertexCount() int {
	if m == nil {
		return 0
	}
	total := 0
	for _, part := range m.Parts {
		total += part.VertexCount()
	}
	return total
}
