package vector

import (
	"container/heap"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"

	"github.com/hyperjump/kotae/pkg/utils"
)

const maxHNSWLevel = 16

type hnswNode struct {
	vector []float32
	level  int
	edges  [][]int // edges[layer] holds neighbour slots
}

// HNSWIndex is an approximate index built as a hierarchical navigable small world graph.
// Level assignment uses a seeded generator, so the same vectors added in the same order
// always produce the same graph. Only raw vectors are encoded; Decode rebuilds the graph.
type HNSWIndex struct {
	dimensions     int
	m              int
	m0             int
	efConstruction int
	efSearch       int
	ml             float64
	seed           int64
	rng            *rand.Rand
	nodes          []*hnswNode
	entry          int
	maxLevel       int
	mu             sync.RWMutex
}

// NewHNSWIndex creates an empty HNSW index.
func NewHNSWIndex(dimensions int, opts Options) (*HNSWIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if opts.M < 2 {
		opts.M = 16
	}
	if opts.EfConstruction <= 0 {
		opts.EfConstruction = 200
	}
	if opts.EfSearch <= 0 {
		opts.EfSearch = 64
	}
	h := &HNSWIndex{
		dimensions:     dimensions,
		m:              opts.M,
		m0:             opts.M * 2,
		efConstruction: opts.EfConstruction,
		efSearch:       opts.EfSearch,
		ml:             1 / math.Log(float64(opts.M)),
		seed:           opts.Seed,
	}
	h.reset()
	return h, nil
}

func (h *HNSWIndex) reset() {
	h.rng = rand.New(rand.NewSource(h.seed))
	h.nodes = nil
	h.entry = -1
	h.maxLevel = -1
}

// Type returns the index type identifier.
func (h *HNSWIndex) Type() string {
	return string(IndexTypeHNSW)
}

// Add inserts vectors in order. Nothing is added if any vector has the wrong dimension.
func (h *HNSWIndex) Add(ctx context.Context, vectors [][]float32) error {
	if err := checkDimensions(vectors, h.dimensions); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, v := range vectors {
		vec := make([]float32, h.dimensions)
		copy(vec, v)
		h.insert(vec)
	}
	return nil
}

func (h *HNSWIndex) insert(vec []float32) {
	slot := len(h.nodes)
	level := h.randomLevel()
	node := &hnswNode{vector: vec, level: level, edges: make([][]int, level+1)}
	h.nodes = append(h.nodes, node)
	if h.entry < 0 {
		h.entry = slot
		h.maxLevel = level
		return
	}

	ep := h.entry
	epDist := utils.SquaredL2(vec, h.nodes[ep].vector)
	for l := h.maxLevel; l > level; l-- {
		ep, epDist = h.greedy(vec, ep, epDist, l)
	}
	for l := min(level, h.maxLevel); l >= 0; l-- {
		candidates := h.searchLayer(vec, ep, epDist, h.efConstruction, l)
		n := min(h.m, len(candidates))
		node.edges[l] = make([]int, 0, n)
		for _, c := range candidates[:n] {
			node.edges[l] = append(node.edges[l], c.Slot)
			h.link(c.Slot, slot, l)
		}
		ep, epDist = candidates[0].Slot, candidates[0].Distance
	}
	if level > h.maxLevel {
		h.maxLevel = level
		h.entry = slot
	}
}

func (h *HNSWIndex) randomLevel() int {
	level := int(-math.Log(1-h.rng.Float64()) * h.ml)
	return min(level, maxHNSWLevel)
}

func (h *HNSWIndex) maxEdges(layer int) int {
	if layer == 0 {
		return h.m0
	}
	return h.m
}

// link adds an edge from -> to on layer and prunes from's edges to the nearest maxEdges.
func (h *HNSWIndex) link(from, to, layer int) {
	node := h.nodes[from]
	node.edges[layer] = append(node.edges[layer], to)
	limit := h.maxEdges(layer)
	if len(node.edges[layer]) <= limit {
		return
	}
	hits := make([]Neighbor, len(node.edges[layer]))
	for i, s := range node.edges[layer] {
		hits[i] = Neighbor{Slot: s, Distance: utils.SquaredL2(node.vector, h.nodes[s].vector)}
	}
	sortNeighbors(hits)
	kept := node.edges[layer][:0]
	for _, hit := range hits[:limit] {
		kept = append(kept, hit.Slot)
	}
	node.edges[layer] = kept
}

func (h *HNSWIndex) greedy(q []float32, ep int, epDist float32, layer int) (int, float32) {
	for changed := true; changed; {
		changed = false
		for _, s := range h.nodes[ep].edges[layer] {
			if d := utils.SquaredL2(q, h.nodes[s].vector); d < epDist || (d == epDist && s < ep) {
				ep, epDist = s, d
				changed = true
			}
		}
	}
	return ep, epDist
}

// searchLayer returns up to ef nodes nearest to q on layer, sorted nearest first.
func (h *HNSWIndex) searchLayer(q []float32, ep int, epDist float32, ef, layer int) []Neighbor {
	visited := map[int]struct{}{ep: {}}
	candidates := &minNeighborHeap{{Slot: ep, Distance: epDist}}
	results := &maxNeighborHeap{{Slot: ep, Distance: epDist}}
	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(Neighbor)
		if results.Len() >= ef && c.Distance > (*results)[0].Distance {
			break
		}
		for _, s := range h.nodes[c.Slot].edges[layer] {
			if _, seen := visited[s]; seen {
				continue
			}
			visited[s] = struct{}{}
			d := utils.SquaredL2(q, h.nodes[s].vector)
			if results.Len() < ef || d < (*results)[0].Distance {
				heap.Push(candidates, Neighbor{Slot: s, Distance: d})
				heap.Push(results, Neighbor{Slot: s, Distance: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}
	out := make([]Neighbor, len(*results))
	copy(out, *results)
	sortNeighbors(out)
	return out
}

// Search returns up to k approximate nearest neighbours.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != h.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), h.dimensions)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if k <= 0 || h.entry < 0 {
		return nil, nil
	}
	ep := h.entry
	epDist := utils.SquaredL2(query, h.nodes[ep].vector)
	for l := h.maxLevel; l > 0; l-- {
		ep, epDist = h.greedy(query, ep, epDist, l)
	}
	hits := h.searchLayer(query, ep, epDist, max(h.efSearch, k), 0)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Truncate keeps the first n vectors and rebuilds the graph from them, leaving the
// index exactly as Decode would produce it from those vectors.
func (h *HNSWIndex) Truncate(n int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n < 0 || n > len(h.nodes) {
		return fmt.Errorf("truncate to %d out of range [0, %d]", n, len(h.nodes))
	}
	if n == len(h.nodes) {
		return nil
	}
	kept := h.nodes[:n]
	h.reset()
	for _, node := range kept {
		h.insert(node.vector)
	}
	return nil
}

// Encode writes the raw vectors in slot order.
func (h *HNSWIndex) Encode(w io.Writer) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	vectors := make([][]float32, len(h.nodes))
	for i, node := range h.nodes {
		vectors[i] = node.vector
	}
	return encodeVectors(w, h.dimensions, vectors)
}

// Decode reads vectors and rebuilds the graph from scratch. On error the index is unchanged.
func (h *HNSWIndex) Decode(r io.Reader) error {
	vectors, err := decodeVectors(r, h.dimensions)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reset()
	for _, v := range vectors {
		h.insert(v)
	}
	return nil
}

// Size returns the number of vectors in the index.
func (h *HNSWIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

// Dimensions returns the vector dimension.
func (h *HNSWIndex) Dimensions() int {
	return h.dimensions
}

// Close is a no-op for HNSWIndex.
func (h *HNSWIndex) Close() error {
	return nil
}

type minNeighborHeap []Neighbor

func (q minNeighborHeap) Len() int { return len(q) }
func (q minNeighborHeap) Less(i, j int) bool {
	if q[i].Distance != q[j].Distance {
		return q[i].Distance < q[j].Distance
	}
	return q[i].Slot < q[j].Slot
}
func (q minNeighborHeap) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *minNeighborHeap) Push(x any)   { *q = append(*q, x.(Neighbor)) }
func (q *minNeighborHeap) Pop() any {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}

// maxNeighborHeap keeps the worst hit at the root.
type maxNeighborHeap []Neighbor

func (q maxNeighborHeap) Len() int { return len(q) }
func (q maxNeighborHeap) Less(i, j int) bool {
	if q[i].Distance != q[j].Distance {
		return q[i].Distance > q[j].Distance
	}
	return q[i].Slot > q[j].Slot
}
func (q maxNeighborHeap) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *maxNeighborHeap) Push(x any)   { *q = append(*q, x.(Neighbor)) }
func (q *maxNeighborHeap) Pop() any {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}
