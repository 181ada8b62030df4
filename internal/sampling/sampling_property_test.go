package sampling

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/yourorg/youtube-stats-sampler/internal/store"
)

// TestProperty_NormalizedWeightsArePositive 归一化后每个权重 >= 1，长度不变
func TestProperty_NormalizedWeightsArePositive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("every normalized weight is >= 1 and length is preserved", prop.ForAll(
		func(weights []uint64) bool {
			out, _ := Normalize(weights)
			if len(out) != len(weights) {
				return false
			}
			for _, w := range out {
				if w < 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt64Range(0, 1<<40)),
	))

	properties.TestingRun(t)
}

// TestProperty_NormalizePreservesOrdering w_in[i] > w_in[j] 则 w_out[i] > w_out[j]
func TestProperty_NormalizePreservesOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("strict ordering survives normalization", prop.ForAll(
		func(weights []uint64) bool {
			out, _ := Normalize(weights)
			for i := range weights {
				for j := range weights {
					if weights[i] > weights[j] && !(out[i] > out[j]) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt64Range(0, 1000)),
	))

	properties.TestingRun(t)
}

// TestProperty_KeyMapIsFunction 不同 serial 不会映射到同一个 key，表内每个 serial 都在映射中
func TestProperty_KeyMapIsFunction(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("serial to key map is injective over unique catalogs", prop.ForAll(
		func(diffs []int64) bool {
			changes := make([]store.RecentChange, len(diffs))
			for i, d := range diffs {
				changes[i] = store.RecentChange{
					Key:    int32(i + 1),
					Serial: "UC" + string(rune('a'+i%26)) + string(rune('A'+i/26)),
					Diff:   d,
				}
			}
			table := Build(changes)

			seenKeys := make(map[int32]string, len(table.Keys))
			for serial, key := range table.Keys {
				if other, ok := seenKeys[key]; ok && other != serial {
					return false
				}
				seenKeys[key] = serial
			}
			for _, e := range table.Entries {
				if _, ok := table.Keys[e.Serial]; !ok {
					return false
				}
			}
			return len(table.Keys) == len(diffs)
		},
		gen.SliceOfN(40, gen.Int64Range(-1000, 1000)),
	))

	properties.TestingRun(t)
}

// TestProperty_DrawFrequencyConverges 经验频率收敛于 w[i] / Σw，误差为 O(1/√N)
func TestProperty_DrawFrequencyConverges(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	const n = 20000

	properties.Property("empirical frequencies match weights", prop.ForAll(
		func(weights []uint64, seed uint64) bool {
			if len(weights) == 0 {
				return true
			}
			idx, err := NewWeightedIndex(weights, rand.New(rand.NewPCG(seed, seed+1)))
			if err != nil {
				return false
			}
			counts := make([]int, len(weights))
			for i := 0; i < n; i++ {
				counts[idx.Draw()]++
			}
			total := float64(idx.Total())
			for i, w := range weights {
				p := float64(w) / total
				tolerance := 6*math.Sqrt(p*(1-p)/n) + 1.0/n
				if math.Abs(float64(counts[i])/n-p) > tolerance {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.UInt64Range(1, 100)),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
