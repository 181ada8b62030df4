package sampling

import "math"

// Normalize 保证权重向量严格为正
// 最小值为 0 时所有权重加 1（均匀平移，保持非零权重之间的大小关系），
// 否则原样返回。返回新切片，不修改输入。
// Build 产生的权重不超过 2^63（int64 diff 的绝对值），平移后严格保持间距；
// 只有直接传入接近 MaxUint64 的权重时才会饱和。
func Normalize(weights []uint64) ([]uint64, bool) {
	out := make([]uint64, len(weights))
	copy(out, weights)
	if len(out) == 0 {
		return out, false
	}

	lowest := out[0]
	for _, w := range out[1:] {
		if w < lowest {
			lowest = w
		}
	}
	if lowest > 0 {
		return out, false
	}

	for i, w := range out {
		if w < math.MaxUint64 {
			out[i] = w + 1
		}
	}
	return out, true
}
