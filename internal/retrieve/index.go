package retrieve

import (
	"github.com/coder/hnsw"

	"github.com/glinthq/onboardrag/internal/model"
)

// vectorIndex is an in-memory HNSW graph over embedded chunks. It serves
// candidate generation only; final scores always come from an exact cosine
// pass in the retriever.
type vectorIndex struct {
	graph   *hnsw.Graph[uint64]
	chunks  map[uint64]*model.Chunk
	nextKey uint64
}

func newVectorIndex() *vectorIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &vectorIndex{
		graph:  graph,
		chunks: make(map[uint64]*model.Chunk),
	}
}

// Add inserts one embedded chunk.
func (v *vectorIndex) Add(chunk *model.Chunk) {
	key := v.nextKey
	v.nextKey++

	v.graph.Add(hnsw.MakeNode(key, chunk.Embedding))
	v.chunks[key] = chunk
}

// Search returns up to k approximate nearest chunks.
func (v *vectorIndex) Search(query []float32, k int) []*model.Chunk {
	if v.graph.Len() == 0 {
		return nil
	}

	nodes := v.graph.Search(query, k)
	out := make([]*model.Chunk, 0, len(nodes))
	for _, node := range nodes {
		if chunk, ok := v.chunks[node.Key]; ok {
			out = append(out, chunk)
		}
	}
	return out
}

// Len reports the number of indexed chunks.
func (v *vectorIndex) Len() int {
	return len(v.chunks)
}
