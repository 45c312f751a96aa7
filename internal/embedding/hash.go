package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
)

// bigramWeight scales the contribution of adjacent term pairs relative to
// single terms.
const bigramWeight = 0.5

// HashClient is a local feature-hashing embedding model. Text runs through
// the bleve English analyzer (tokenise, lowercase, drop stop words, stem);
// every term and adjacent term pair is hashed into a signed bucket and the
// result is L2-normalised. The same text always yields the same vector.
type HashClient struct {
	dims     int
	analyzer analysis.Analyzer
}

// NewHashClient builds the analyzer once; the client is safe for concurrent use.
func NewHashClient(dims int) (*HashClient, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got: %d", dims)
	}
	indexMapping := bleve.NewIndexMapping()
	analyzer := indexMapping.AnalyzerNamed(en.AnalyzerName)
	if analyzer == nil {
		return nil, fmt.Errorf("bleve analyzer %q not registered", en.AnalyzerName)
	}
	return &HashClient{dims: dims, analyzer: analyzer}, nil
}

// Embed generates an embedding for a single text
func (c *HashClient) Embed(_ context.Context, text string) ([]float32, error) {
	terms := c.terms(text)
	if len(terms) == 0 {
		return nil, fmt.Errorf("no terms in text")
	}

	vec := make([]float64, c.dims)
	for i, term := range terms {
		c.add(vec, term, 1)
		if i > 0 {
			c.add(vec, terms[i-1]+"\x00"+term, bigramWeight)
		}
	}

	var sumSq float64
	for _, v := range vec {
		sumSq += v * v
	}
	if sumSq == 0 {
		return nil, fmt.Errorf("degenerate embedding")
	}
	norm := 1 / math.Sqrt(sumSq)

	out := make([]float32, c.dims)
	for i, v := range vec {
		out[i] = float32(v * norm)
	}
	return out, nil
}

// terms returns analysed terms, falling back to lower-cased words when the
// analyzer drops everything (e.g. a text made only of stop words).
func (c *HashClient) terms(text string) []string {
	tokens := c.analyzer.Analyze([]byte(text))
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok.Term) > 0 {
			terms = append(terms, string(tok.Term))
		}
	}
	if len(terms) > 0 {
		return terms
	}
	return strings.Fields(strings.ToLower(text))
}

func (c *HashClient) add(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(c.dims))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// Dimensions returns the dimension of the embeddings
func (c *HashClient) Dimensions() int {
	return c.dims
}

func (c *HashClient) Name() string {
	return fmt.Sprintf("hash-%d", c.dims)
}
