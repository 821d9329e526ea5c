package synonym

import (
	"slices"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
)

// tokenSiblingLimit bounds how many siblings a single-word hit contributes.
const tokenSiblingLimit = 2

// Expander rewrites queries with canonical documentation terms.
// It is immutable after construction and safe for concurrent use.
type Expander struct {
	groups []Group

	// lowercase synonym -> indexes into groups, in definition order
	bySynonym map[string][]int
	phrases   []string
}

type match struct {
	synonym string
	group   int
}

func NewExpander(groups []Group) *Expander {
	e := &Expander{
		groups:    make([]Group, len(groups)),
		bySynonym: make(map[string][]int),
	}
	copy(e.groups, groups)

	for gi, g := range e.groups {
		for _, s := range g.Synonyms {
			key := strings.ToLower(s)
			if !slices.Contains(e.bySynonym[key], gi) {
				e.bySynonym[key] = append(e.bySynonym[key], gi)
			}
		}
	}
	for key := range e.bySynonym {
		if strings.ContainsFunc(key, unicode.IsSpace) {
			e.phrases = append(e.phrases, key)
		}
	}
	sort.Slice(e.phrases, func(i, j int) bool {
		if len(e.phrases[i]) != len(e.phrases[j]) {
			return len(e.phrases[i]) > len(e.phrases[j])
		}
		return e.phrases[i] < e.phrases[j]
	})
	return e
}

// NewDefaultExpander builds an expander over the embedded vocabulary.
func NewDefaultExpander() (*Expander, error) {
	groups, err := DefaultGroups()
	if err != nil {
		return nil, err
	}
	return NewExpander(groups), nil
}

func (e *Expander) Groups() []Group {
	out := make([]Group, len(e.groups))
	copy(out, e.groups)
	return out
}

func (e *Expander) Expand(query string) string {
	return e.ExpandQuery(query).Expanded
}

// ExpandQuery appends canonical terms and related synonyms to the query.
// Multi-word phrases are matched longest-first and consume their span, so a
// shorter synonym embedded in a longer hit never contributes. Remaining
// whitespace tokens that equal a single-word synonym add the canonical term
// plus its first two siblings.
func (e *Expander) ExpandQuery(query string) domain.ExpandedQuery {
	out := domain.ExpandedQuery{Original: query, Expanded: query}
	if strings.TrimSpace(query) == "" {
		return out
	}

	phraseHits, tokenHits := e.matches(query)
	if len(phraseHits) == 0 && len(tokenHits) == 0 {
		return out
	}

	terms := newOrderedSet(query)
	for _, m := range phraseHits {
		g := e.groups[m.group]
		terms.add(g.Canonical)
		for _, related := range g.Synonyms {
			if strings.ToLower(related) != m.synonym {
				terms.add(related)
			}
		}
	}
	for _, m := range tokenHits {
		g := e.groups[m.group]
		terms.add(g.Canonical)
		limit := tokenSiblingLimit
		if limit > len(g.Synonyms) {
			limit = len(g.Synonyms)
		}
		for _, related := range g.Synonyms[:limit] {
			terms.add(related)
		}
	}

	out.Expanded = strings.Join(terms.items, " ")
	return out
}

func (e *Expander) ContainsSynonyms(query string) bool {
	phraseHits, tokenHits := e.matches(query)
	return len(phraseHits) > 0 || len(tokenHits) > 0
}

// SuggestedCanonicalTerms lists canonical terms for every recognised synonym, in discovery order.
func (e *Expander) SuggestedCanonicalTerms(query string) []string {
	phraseHits, tokenHits := e.matches(query)
	terms := newOrderedSet()
	for _, m := range append(phraseHits, tokenHits...) {
		terms.add(e.groups[m.group].Canonical)
	}
	return terms.items
}

func (e *Expander) matches(query string) (phraseHits, tokenHits []match) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	lower := strings.ToLower(query)
	rest := lower

	for _, phrase := range e.phrases {
		if !strings.Contains(rest, phrase) {
			continue
		}
		phraseHits = append(phraseHits, match{synonym: phrase, group: e.resolve(phrase, lower)})
		rest = strings.ReplaceAll(rest, phrase, strings.Repeat(" ", len(phrase)))
	}

	for _, token := range strings.Fields(rest) {
		token = strings.TrimFunc(token, unicode.IsPunct)
		if token == "" {
			continue
		}
		if _, ok := e.bySynonym[token]; !ok {
			continue
		}
		tokenHits = append(tokenHits, match{synonym: token, group: e.resolve(token, lower)})
	}
	return phraseHits, tokenHits
}

// resolve picks the group for a synonym shared by several groups. Each
// candidate scores one point per other term of the group (canonical, context
// tag, sibling synonyms) present in the query; ties go to the group defined last.
func (e *Expander) resolve(synonym, lowerQuery string) int {
	candidates := e.bySynonym[synonym]
	if len(candidates) == 1 {
		return candidates[0]
	}

	best, bestScore := candidates[len(candidates)-1], -1
	for _, gi := range candidates {
		g := e.groups[gi]
		score := 0
		if strings.Contains(lowerQuery, strings.ToLower(g.Canonical)) {
			score++
		}
		if g.Context != "" && strings.Contains(lowerQuery, strings.ToLower(g.Context)) {
			score++
		}
		for _, s := range g.Synonyms {
			s = strings.ToLower(s)
			if s != synonym && strings.Contains(lowerQuery, s) {
				score++
			}
		}
		if score >= bestScore {
			best, bestScore = gi, score
		}
	}
	return best
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet(seed ...string) *orderedSet {
	s := &orderedSet{seen: make(map[string]struct{})}
	for _, v := range seed {
		s.add(v)
	}
	return s
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
