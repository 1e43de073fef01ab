package generator

import (
	"math/rand"
)

// SampleRange draws k distinct integers from [0, n) in random order.
// k is clamped to n. Memory is proportional to k, not n.
func SampleRange(r *rand.Rand, n, k int64) []int64 {
	if k > n {
		k = n
	}
	if k <= 0 {
		return []int64{}
	}
	// Floyd's algorithm, followed by a shuffle since Floyd does not
	// produce a uniformly random order.
	chosen := make(map[int64]struct{}, k)
	ret := make([]int64, 0, k)
	for j := n - k; j < n; j++ {
		t := r.Int63n(j + 1)
		if _, ok := chosen[t]; ok {
			t = j
		}
		chosen[t] = struct{}{}
		ret = append(ret, t)
	}
	r.Shuffle(len(ret), func(i, j int) {
		ret[i], ret[j] = ret[j], ret[i]
	})
	return ret
}

// Sample draws k elements of pool without replacement, in random order.
// k is clamped to len(pool). The pool itself is left untouched.
func Sample[T any](r *rand.Rand, pool []T, k int) []T {
	if k > len(pool) {
		k = len(pool)
	}
	if k <= 0 {
		return []T{}
	}
	indexes := SampleRange(r, int64(len(pool)), int64(k))
	ret := make([]T, 0, k)
	for _, i := range indexes {
		ret = append(ret, pool[i])
	}
	return ret
}
