package grouping

import (
	"fmt"
	"math/bits"
	"strconv"
)

// ParsePHash decodes the 16-hex-character perceptual hash stored on file
// records into its 64-bit value.
func ParsePHash(hexValue string) (uint64, error) {
	value, err := strconv.ParseUint(hexValue, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse phash %q: %w", hexValue, err)
	}
	return value, nil
}

// HammingDistance counts differing bits between two perceptual hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// unionFind links perceptual hash values into transitive clusters.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	rootA, rootB := u.find(a), u.find(b)
	if rootA != rootB {
		u.parent[rootB] = rootA
	}
}
