// Package group implements the Grouper: it embeds article text, clusters
// articles into topical Groups by cosine distance, and annotates each group
// with perspective and coverage metadata.
package group

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
)

// EmbeddingModel maps text to unit-normalized vectors. Implementations may
// batch internally; callers are expected to chunk large inputs.
type EmbeddingModel interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// firstNTokens returns the first n whitespace-delimited tokens of s, joined
// back with single spaces.
func firstNTokens(s string, n int) string {
	fields := strings.Fields(s)
	if n <= 0 || n >= len(fields) {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:n], " ")
}

// EmbeddingText builds the text an article contributes to embedding:
// title plus the first n tokens of content, per the fixed-input contract.
func EmbeddingText(title, content string, firstNTokensForEmbed int) string {
	return strings.TrimSpace(title + " " + firstNTokens(content, firstNTokensForEmbed))
}

// LocalHashEmbedder is a deterministic, dependency-free EmbeddingModel used
// as an offline/test stand-in for a real embedding provider. It hashes
// token shingles into a fixed-dimensional unit vector so that
// similar/identical text always produces the same vector, without any
// network call.
type LocalHashEmbedder struct {
	Dimensions int
}

// NewLocalHashEmbedder returns a LocalHashEmbedder producing vectors of the
// given dimensionality (defaulting to 384, the spec's reference dimension).
func NewLocalHashEmbedder(dimensions int) *LocalHashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &LocalHashEmbedder{Dimensions: dimensions}
}

func (e *LocalHashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embedOne(t)
	}
	return out, nil
}

func (e *LocalHashEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.Dimensions)
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		tokens = []string{""}
	}
	for _, tok := range tokens {
		h := sha256.Sum256([]byte(tok))
		idx := binary.BigEndian.Uint64(h[:8]) % uint64(e.Dimensions)
		sign := float32(1)
		if h[8]%2 == 1 {
			sign = -1
		}
		vec[idx] += sign
	}
	normalize(vec)
	return vec
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}
