// ABOUTME: Deterministic k-means over embedding vectors with k-means++ seeding
// ABOUTME: A fixed seed gives the same partition for the same input order
package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
)

// Partition is the outcome of one k-means run
type Partition struct {
	Assign     []int       // cluster index per input vector
	Centroids  [][]float64 // one per cluster
	Iterations int
}

// KMeans partitions vectors into k clusters. k larger than the number of
// vectors is reduced to it.
func KMeans(vectors [][]float64, k int, seed uint64, maxIter int) (*Partition, error) {
	n := len(vectors)
	if n == 0 {
		return nil, models.NewOpError("cluster.kmeans", models.ErrInvalidInput, errors.New("no vectors to cluster"))
	}
	if k < 1 {
		return nil, models.NewOpError("cluster.kmeans", models.ErrInvalidInput, fmt.Errorf("k must be at least 1, got %d", k))
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim || dim == 0 {
			return nil, models.NewOpError("cluster.kmeans", models.ErrInvalidInput,
				fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim))
		}
	}
	k = min(k, n)
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	centroids := seedCentroids(vectors, k, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}

	iter := 0
	for iter < maxIter {
		iter++
		moved := 0
		for i, v := range vectors {
			c := nearest(v, centroids)
			if c != assign[i] {
				assign[i] = c
				moved++
			}
		}
		if moved == 0 {
			break
		}
		recenter(vectors, assign, centroids)
	}
	return &Partition{Assign: assign, Centroids: centroids, Iterations: iter}, nil
}

// seedCentroids picks k starting points with k-means++: each new centre is
// drawn with probability proportional to its squared distance from the
// nearest centre already chosen.
func seedCentroids(vectors [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(vectors)
	chosen := make([]bool, n)
	first := rng.IntN(n)
	chosen[first] = true
	centroids := [][]float64{clone(vectors[first])}

	dist := make([]float64, n)
	for i, v := range vectors {
		dist[i] = sqDist(v, centroids[0])
	}
	for len(centroids) < k {
		var total float64
		for _, d := range dist {
			total += d
		}
		next := -1
		if total > 0 {
			r := rng.Float64() * total
			for i, d := range dist {
				r -= d
				if r < 0 && d > 0 {
					next = i
					break
				}
			}
			if next < 0 {
				for i := n - 1; i >= 0; i-- {
					if dist[i] > 0 {
						next = i
						break
					}
				}
			}
		}
		if next < 0 {
			// every remaining point coincides with a centre
			for i := range chosen {
				if !chosen[i] {
					next = i
					break
				}
			}
		}
		chosen[next] = true
		c := clone(vectors[next])
		centroids = append(centroids, c)
		for i, v := range vectors {
			dist[i] = math.Min(dist[i], sqDist(v, c))
		}
	}
	return centroids
}

// recenter moves each centroid to the mean of its members. A centroid with no
// members stays where it is.
func recenter(vectors [][]float64, assign []int, centroids [][]float64) {
	dim := len(vectors[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	for i, v := range vectors {
		c := assign[i]
		counts[c]++
		for d, x := range v {
			sums[c][d] += x
		}
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for d := range sums[c] {
			centroids[c][d] = sums[c][d] / float64(counts[c])
		}
	}
}

// nearest returns the closest centroid; ties go to the lower index
func nearest(v []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(v, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
