// Package search provides a small, deterministic, concurrency-safe in-memory
// product index used by the storefront's product search:
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options for stop words, minimum name length and size caps
//   - Unicode-aware tokenization of product names
//   - Immutable after construction (safe for concurrent use)
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring uses Jaccard similarity between the query token set and each
// product name's token set: score = |Q ∩ P| / |Q ∪ P|.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/talesofaneria/storefront/internal/domain"
)

// Result is a ranked product with its similarity score.
type Result struct {
	Product domain.Product
	Score   float64
}

// Index is the minimal interface implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minNameRunes int
	stopwords    map[string]struct{}
	maxDocs      int
}

func defaultConfig() config {
	return config{
		minNameRunes: 2,
		stopwords:    nil,
		maxDocs:      0,
	}
}

// WithMinNameRunes drops products whose trimmed name is shorter than n runes.
func WithMinNameRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minNameRunes = n
		}
	}
}

// WithStopwords excludes words from both product and query tokens.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = fold(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxDocs caps the number of indexed products.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// DefaultStopwords are English filler words common in product titles.
var DefaultStopwords = []string{"a", "an", "and", "the", "of", "for", "with", "in", "on", "to"}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	product domain.Product
	tokens  map[string]struct{}
	tLen    int
}

type index struct {
	cfg  config
	docs []doc
}

// NewProductIndex builds an Index over the names of products. Products with
// a blank name, an id seen before, or no tokens left after stop-word removal
// are skipped.
func NewProductIndex(products []domain.Product, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return buildIndex(products, cfg)
}

func buildIndex(products []domain.Product, cfg config) *index {
	docs := make([]doc, 0, len(products))
	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		name := strings.TrimSpace(normalizeWhitespace(p.Name))
		if name == "" {
			continue
		}
		if cfg.minNameRunes > 0 && utf8.RuneCountInString(name) < cfg.minNameRunes {
			continue
		}
		if p.ID != "" {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
		}
		toks := tokenize(name, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		docs = append(docs, doc{product: p, tokens: toks, tLen: len(toks)})
		if cfg.maxDocs > 0 && len(docs) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: docs}
}

// Len returns the number of indexed products.
func (i *index) Len() int { return len(i.docs) }

// TopK returns up to k best-matching products by Jaccard similarity. Ties
// prefer in-stock products, then shorter names, then name and id order.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 10
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}
	qLen := len(qTokens)

	type scored struct {
		doc      *doc
		score    float64
		lenRunes int
	}

	buf := make([]scored, 0, min(k*4, len(i.docs)))
	for n := range i.docs {
		d := &i.docs[n]
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(qLen + d.tLen - over)
		if union <= 0 {
			continue
		}
		buf = append(buf, scored{
			doc:      d,
			score:    float64(over) / union,
			lenRunes: utf8.RuneCountInString(d.product.Name),
		})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		pa, pb := buf[a].doc.product, buf[b].doc.product
		switch {
		case buf[a].score != buf[b].score:
			return buf[a].score > buf[b].score
		case pa.InStock != pb.InStock:
			return pa.InStock
		case buf[a].lenRunes != buf[b].lenRunes:
			return buf[a].lenRunes < buf[b].lenRunes
		case pa.Name != pb.Name:
			return pa.Name < pb.Name
		default:
			return pa.ID < pb.ID
		}
	})

	k = min(k, len(buf))
	out := make([]Result, k)
	for n := 0; n < k; n++ {
		out[n] = Result{Product: buf[n].doc.product, Score: buf[n].score}
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// fold case-folds s and strips combining marks, so "Anéria" and "ANERIA"
// produce the same token. Transformers and casers hold state, hence one per
// call.
func fold(s string) string {
	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if t, _, err := transform.String(strip, s); err == nil {
		s = t
	}
	return cases.Fold().String(s)
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
