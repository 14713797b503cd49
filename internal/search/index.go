// Package search provides a small, deterministic, in-memory token index used
// to look up catalog entries by city, country, continent, zone id, or alias.
//
//   - Text is folded before tokenizing: case-folded and stripped of
//     diacritics, so "sao" matches "São Paulo".
//   - Every query token must prefix-match at least one document token.
//   - Scores favour exact token hits over prefix hits; ties break on the
//     document Rank, then on ID, so results are stable.
//   - The index is immutable after construction and safe for concurrent use.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Document is one searchable item. Fields are concatenated for tokenizing.
// Rank is a caller-defined secondary order (lower first).
type Document struct {
	ID     string
	Fields []string
	Rank   int
}

// Result is a matching document ID and its score in (0, 1].
type Result struct {
	ID    string
	Score float64
}

// Index is the read-only lookup contract.
type Index interface {
	// Search returns up to limit matches, best first. limit <= 0 means all.
	// A blank query returns nil.
	Search(query string, limit int) []Result
	// Len reports the number of indexed documents.
	Len() int
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	id     string
	rank   int
	tokens []string // sorted, unique
}

type index struct {
	docs []doc
}

// NewIndex builds an Index over docs. Documents without any token are skipped.
func NewIndex(docs []Document) Index {
	out := make([]doc, 0, len(docs))
	for _, d := range docs {
		toks := tokenize(strings.Join(d.Fields, " "))
		if len(toks) == 0 {
			continue
		}
		out = append(out, doc{id: d.ID, rank: d.Rank, tokens: toks})
	}
	return &index{docs: out}
}

func (i *index) Len() int { return len(i.docs) }

func (i *index) Search(q string, limit int) []Result {
	qTokens := tokenize(q)
	if len(qTokens) == 0 || len(i.docs) == 0 {
		return nil
	}

	type scored struct {
		id    string
		rank  int
		score float64
	}
	var hits []scored
	for _, d := range i.docs {
		total := 0.0
		matched := true
		for _, qt := range qTokens {
			s := bestMatch(qt, d.tokens)
			if s == 0 {
				matched = false
				break
			}
			total += s
		}
		if !matched {
			continue
		}
		hits = append(hits, scored{id: d.id, rank: d.rank, score: total / float64(len(qTokens))})
	}
	if len(hits) == 0 {
		return nil
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		if hits[a].rank != hits[b].rank {
			return hits[a].rank < hits[b].rank
		}
		return hits[a].id < hits[b].id
	})

	if limit <= 0 || limit > len(hits) {
		limit = len(hits)
	}
	out := make([]Result, limit)
	for k := 0; k < limit; k++ {
		out[k] = Result{ID: hits[k].id, Score: hits[k].score}
	}
	return out
}

// bestMatch scores one query token against a document's tokens:
// 1 for an exact hit, len(q)/len(t) for the best prefix hit, 0 otherwise.
func bestMatch(q string, toks []string) float64 {
	// toks is sorted, so all tokens with prefix q are contiguous from here.
	j := sort.SearchStrings(toks, q)
	if j < len(toks) && toks[j] == q {
		return 1
	}
	best := 0.0
	for ; j < len(toks) && strings.HasPrefix(toks[j], q); j++ {
		if s := float64(len(q)) / float64(len(toks[j])); s > best {
			best = s
		}
	}
	return best
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Fold lowercases s with Unicode case folding and strips combining marks.
// Casers are stateful, so one is built per call.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}

func tokenize(s string) []string {
	words := wordRE.FindAllString(Fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
