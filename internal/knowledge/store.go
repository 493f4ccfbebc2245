package knowledge

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	defaultTopK         = 3
)

type chunk struct {
	doc   *schema.Document
	terms map[string]struct{}
}

// Store is an in-memory keyword index over product documents. It implements
// the eino retriever.Retriever interface.
type Store struct {
	chunks []chunk
}

// NewStore indexes docs as they are; use Load to read and chunk files.
func NewStore(docs ...*schema.Document) *Store {
	s := &Store{}
	for _, d := range docs {
		s.add(d)
	}
	return s
}

func (s *Store) add(d *schema.Document) {
	if d == nil || strings.TrimSpace(d.Content) == "" {
		return
	}
	terms := map[string]struct{}{}
	for _, t := range tokenize(d.Content) {
		terms[t] = struct{}{}
	}
	s.chunks = append(s.chunks, chunk{doc: d, terms: terms})
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int {
	return len(s.chunks)
}

func (s *Store) GetType() string {
	return "KeywordStore"
}

// Retrieve ranks chunks by the share of distinct query terms they contain and
// returns the best TopK with a non-zero score.
func (s *Store) Retrieve(ctx context.Context, query string, opts ...retriever.Option) (docs []*schema.Document, err error) {
	topK := defaultTopK
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	if options.TopK != nil && *options.TopK > 0 {
		topK = *options.TopK
	}

	ctx = callbacks.EnsureRunInfo(ctx, s.GetType(), components.ComponentOfRetriever)
	ctx = callbacks.OnStart(ctx, &retriever.CallbackInput{Query: query, TopK: topK})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
			return
		}
		callbacks.OnEnd(ctx, &retriever.CallbackOutput{Docs: docs})
	}()

	qterms := unique(tokenize(query))
	if len(qterms) == 0 || len(s.chunks) == 0 {
		return nil, nil
	}

	type scored struct {
		idx   int
		score float64
	}
	var hits []scored
	for i, c := range s.chunks {
		n := 0
		for _, t := range qterms {
			if _, ok := c.terms[t]; ok {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, scored{idx: i, score: float64(n) / float64(len(qterms))})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > topK {
		hits = hits[:topK]
	}

	docs = make([]*schema.Document, 0, len(hits))
	for _, h := range hits {
		src := s.chunks[h.idx].doc
		d := &schema.Document{ID: src.ID, Content: src.Content, MetaData: map[string]any{}}
		for k, v := range src.MetaData {
			d.MetaData[k] = v
		}
		docs = append(docs, d.WithScore(h.score))
	}
	return docs, nil
}

// folder returns a fresh transformer; transformers carry state and are not shared.
func folder() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// tokenize lowercases text, strips diacritics (including Hebrew niqqud) and
// splits it into letter/digit terms of at least two runes.
func tokenize(text string) []string {
	folded, _, err := transform.String(folder(), strings.ToLower(text))
	if err != nil {
		folded = strings.ToLower(text)
	}
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

func unique(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

var _ retriever.Retriever = (*Store)(nil)
