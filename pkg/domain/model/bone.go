// 指示: miu200521358
package model

import (
	"fmt"

	"github.com/miu200521358/mu_autorig/pkg/domain/mmath"
)

// Bone はボーン1本(線分head-tail)を表す。
type Bone struct {
	index       int
	name        string
	Head        mmath.Vec3
	Tail        mmath.Vec3
	ParentIndex int
}

// NewBone は未登録状態のボーンを生成する。
func NewBone(name string, head mmath.Vec3, tail mmath.Vec3) *Bone {
	return &Bone{
		index:       -1,
		name:        name,
		Head:        head,
		Tail:        tail,
		ParentIndex: -1,
	}
}

// Index は登録済みindexを返す。
func (b *Bone) Index() int {
	return b.index
}

// Name はボーン名を返す。
func (b *Bone) Name() string {
	return b.name
}

// SetName はボーン名を設定する。
func (b *Bone) SetName(name string) {
	b.name = name
}

// Axis はhead→tailの軸ベクトルを返す。
func (b *Bone) Axis() mmath.Vec3 {
	return b.Tail.Subed(b.Head)
}

// IsFinite はhead/tailが有限値のみか判定する。
func (b *Bone) IsFinite() bool {
	return b.Head.IsFinite() && b.Tail.IsFinite()
}

// BoneCollection はボーンのアリーナ(平坦配列+名前索引)を表す。
// 親参照はindexによる非所有の後方参照とする。
type BoneCollection struct {
	values        []*Bone
	indexesByName map[string]int
}

// NewBoneCollection は空のボーンコレクションを生成する。
func NewBoneCollection() *BoneCollection {
	return &BoneCollection{
		values:        []*Bone{},
		indexesByName: map[string]int{},
	}
}

// AppendRaw はボーンを末尾へ追加しindexを返す。同名既登録時は-1を返す。
func (c *BoneCollection) AppendRaw(bone *Bone) int {
	if c == nil || bone == nil {
		return -1
	}
	if _, exists := c.indexesByName[bone.Name()]; exists {
		return -1
	}
	bone.index = len(c.values)
	c.values = append(c.values, bone)
	c.indexesByName[bone.Name()] = bone.index
	return bone.index
}

// Get はindex指定でボーンを取得する。
func (c *BoneCollection) Get(index int) (*Bone, error) {
	if c == nil || index < 0 || index >= len(c.values) {
		return nil, fmt.Errorf("ボーンindexが不正です: %d", index)
	}
	return c.values[index], nil
}

// GetByName は名前指定でボーンを取得する。
func (c *BoneCollection) GetByName(name string) (*Bone, bool) {
	if c == nil {
		return nil, false
	}
	index, ok := c.indexesByName[name]
	if !ok {
		return nil, false
	}
	return c.values[index], true
}

// ContainsName は名前のボーンが存在するか判定する。
func (c *BoneCollection) ContainsName(name string) bool {
	_, ok := c.GetByName(name)
	return ok
}

// Len は登録ボーン数を返す。
func (c *BoneCollection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.values)
}

// Values は登録順のボーン一覧を返す。
func (c *BoneCollection) Values() []*Bone {
	if c == nil {
		return nil
	}
	return c.values
}
