// Package sampling 构建每个 tick 的采样表并按权重抽取频道
//
// 采样表由最近变化行生成：权重为 |diff|，最小值为 0 时整体加 1，
// 然后基于前缀和做有放回的加权抽样。
package sampling

import (
	"errors"

	"github.com/yourorg/youtube-stats-sampler/internal/store"
)

// ErrEmptyTable 采样表为空，本 tick 无可采样的频道
var ErrEmptyTable = errors.New("sampling table is empty")

// Entry 采样表条目
type Entry struct {
	Key    int32
	Serial string
	Weight uint64
}

// Table 单个 tick 的采样表
// Entries 保持最近变化行的顺序（diff 降序）；Keys 为 serial -> key 映射
type Table struct {
	Entries []Entry
	Keys    map[string]int32
}

// Build 由最近变化行构建采样表
// 重复的 serial 在映射中以最后一条为准
func Build(rows []store.RecentChange) *Table {
	t := &Table{
		Entries: make([]Entry, 0, len(rows)),
		Keys:    make(map[string]int32, len(rows)),
	}
	for _, row := range rows {
		t.Entries = append(t.Entries, Entry{
			Key:    row.Key,
			Serial: row.Serial,
			Weight: magnitude(row.Diff),
		})
		t.Keys[row.Serial] = row.Key
	}
	return t
}

// Len 条目数量
func (t *Table) Len() int {
	return len(t.Entries)
}

// Weights 返回权重向量的副本
func (t *Table) Weights() []uint64 {
	w := make([]uint64, len(t.Entries))
	for i, e := range t.Entries {
		w[i] = e.Weight
	}
	return w
}

// Serial 返回位置 i 的 serial
func (t *Table) Serial(i int) string {
	return t.Entries[i].Serial
}

// Lookup 通过 serial 查找内部 key
func (t *Table) Lookup(serial string) (int32, bool) {
	key, ok := t.Keys[serial]
	return key, ok
}

// Normalize 对表内权重做归一化，返回是否发生了平移
func (t *Table) Normalize() bool {
	normalized, shifted := Normalize(t.Weights())
	for i := range t.Entries {
		t.Entries[i].Weight = normalized[i]
	}
	return shifted
}

// magnitude 取绝对值，math.MinInt64 不会溢出
func magnitude(d int64) uint64 {
	if d < 0 {
		return uint64(-(d + 1)) + 1
	}
	return uint64(d)
}
