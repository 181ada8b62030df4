package sampling

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"
)

var (
	// ErrZeroWeight 权重必须 >= 1
	ErrZeroWeight = errors.New("weights must be >= 1")
	// ErrWeightOverflow 权重总和超出 uint64
	ErrWeightOverflow = errors.New("total weight overflows uint64")
)

// WeightedIndex 有放回的加权下标抽样器
// 每个 tick 构建一次前缀和，每次抽样为 O(log n) 的二分查找。
// 注意：rand.Rand 不是并发安全的，WeightedIndex 应该在单 goroutine 中使用
type WeightedIndex struct {
	cumulative []uint64
	total      uint64
	rand       *rand.Rand
}

// NewWeightedIndex 由权重构建抽样器
func NewWeightedIndex(weights []uint64, rng *rand.Rand) (*WeightedIndex, error) {
	if len(weights) == 0 {
		return nil, ErrEmptyTable
	}

	cumulative := make([]uint64, len(weights))
	var total uint64
	for i, w := range weights {
		if w == 0 {
			return nil, fmt.Errorf("%w: index %d", ErrZeroWeight, i)
		}
		next := total + w
		if next < total {
			return nil, ErrWeightOverflow
		}
		total = next
		cumulative[i] = total
	}

	return &WeightedIndex{
		cumulative: cumulative,
		total:      total,
		rand:       rng,
	}, nil
}

// NewRand 创建随机数生成器；seed 为 0 时使用当前时间
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// Draw 返回下标 i，概率为 w[i] / Σw
func (w *WeightedIndex) Draw() int {
	r := w.rand.Uint64N(w.total)
	return sort.Search(len(w.cumulative), func(i int) bool {
		return w.cumulative[i] > r
	})
}

// Len 权重数量
func (w *WeightedIndex) Len() int {
	return len(w.cumulative)
}

// Total 权重总和
func (w *WeightedIndex) Total() uint64 {
	return w.total
}

// DrawBatch 抽取 size 个 serial 组成一个批次
// 默认允许批次内重复（上游会去重）；dedupe 为 true 时保留首次出现的顺序去重
func DrawBatch(w *WeightedIndex, t *Table, size int, dedupe bool) []string {
	serials := make([]string, 0, size)
	var seen map[string]struct{}
	if dedupe {
		seen = make(map[string]struct{}, size)
	}
	for i := 0; i < size; i++ {
		serial := t.Serial(w.Draw())
		if dedupe {
			if _, ok := seen[serial]; ok {
				continue
			}
			seen[serial] = struct{}{}
		}
		serials = append(serials, serial)
	}
	return serials
}
