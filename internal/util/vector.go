// ABOUTME: Vector math and binary encoding shared by the storage backends
// ABOUTME: Cosine similarity, stable ranking, and little-endian float64 blobs
package util

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankTopK sorts items by descending score, keeping input order for ties,
// and truncates to k. k <= 0 keeps everything.
func RankTopK[T any](items []T, score func(T) float64, k int) []T {
	sort.SliceStable(items, func(i, j int) bool {
		return score(items[i]) > score(items[j])
	})
	if k > 0 && len(items) > k {
		items = items[:k]
	}
	return items
}

// VectorToBlob encodes a vector as little-endian float64s
func VectorToBlob(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

// BlobToVector decodes a blob written by VectorToBlob
func BlobToVector(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("corrupt vector blob: %d bytes", len(b))
	}
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v, nil
}
