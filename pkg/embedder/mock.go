package embedder

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/tempograph/tempograph/pkg/utils"
)

// MockClient produces deterministic unit vectors from text hashes. Equal
// texts always embed identically, which is what resolution tests need.
type MockClient struct {
	dims int
}

// NewMockClient builds a deterministic embedder with the given dimensions.
func NewMockClient(dims int) *MockClient {
	if dims <= 0 {
		dims = 8
	}
	return &MockClient{dims: dims}
}

func (m *MockClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.vector(text)
	}
	return out, nil
}

func (m *MockClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return m.vector(text), nil
}

func (m *MockClient) Dimensions() int { return m.dims }

func (m *MockClient) Close() error { return nil }

func (m *MockClient) vector(text string) []float32 {
	// Seed each dimension from a keyed hash so nearby tokens do not
	// collide into identical vectors.
	v := make([]float32, m.dims)
	for i := range v {
		h := fnv.New64a()
		h.Write([]byte{byte(i)})
		h.Write([]byte(text))
		v[i] = float32(math.Sin(float64(h.Sum64() % 10007)))
	}
	return utils.NormalizeL2(v)
}
