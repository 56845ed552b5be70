// Package search scores, filters and orders history entries against a query.
// Everything here is a pure function of its inputs.
package search

import (
	"cmp"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/klip/internal/entry"
)

// SortOrder selects the final ordering of results.
type SortOrder string

const (
	SortDateDesc     SortOrder = "date_desc"
	SortDateAsc      SortOrder = "date_asc"
	SortUsageDesc    SortOrder = "usage_desc"
	SortUsageAsc     SortOrder = "usage_asc"
	SortSizeDesc     SortOrder = "size_desc"
	SortSizeAsc      SortOrder = "size_asc"
	SortKindThenDate SortOrder = "kind_then_date"
	SortRelevance    SortOrder = "relevance"
)

// SortOrders lists every accepted order.
var SortOrders = []SortOrder{
	SortDateDesc, SortDateAsc, SortUsageDesc, SortUsageAsc,
	SortSizeDesc, SortSizeAsc, SortKindThenDate, SortRelevance,
}

// ParseSortOrder returns the order named s; empty means date_desc.
func ParseSortOrder(s string) (SortOrder, bool) {
	if s == "" {
		return SortDateDesc, true
	}
	o := SortOrder(strings.ToLower(strings.TrimSpace(s)))
	return o, slices.Contains(SortOrders, o)
}

// Criteria describes a search. Zero values disable the matching filter.
type Criteria struct {
	Query         string
	Kind          *entry.Kind
	Since         *time.Time
	Until         *time.Time
	FavoritesOnly bool
	Tags          []string // match-any, case-insensitive
	MinSize       *int64
	MaxSize       *int64
	Regex         bool
	CaseSensitive bool
	SortBy        SortOrder

	// Now is the reference time for recency bonuses; zero means time.Now.
	Now time.Time
}

// Span is a half-open byte range [Start, End) of a preview.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Result is one matching entry.
type Result struct {
	Entry        entry.Entry
	Score        float64
	MatchedTerms []string
	Preview      string
	Highlights   []Span
}

// Relevance multipliers and windows.
const (
	verbatimBonus   = 1.5
	prefixBonus     = 1.3
	regexPerMatch   = 0.5
	regexCap        = 2.0
	favoriteBonus   = 1.5
	usageWeight     = 0.1
	recentDays      = 7.0
	createdWeight   = 0.05
	lastUsedWeight  = 0.03
	literalFallback = 1.0
)

// Search returns the entries matching c, ordered by c.SortBy.
// Entries excluded by a filter or scoring zero against the query are omitted.
func Search(entries []entry.Entry, c Criteria) []Result {
	now := c.Now
	if now.IsZero() {
		now = time.Now()
	}
	m := newMatcher(c)

	results := make([]Result, 0, len(entries))
	for _, e := range entries {
		if !passesFilters(&e, c) {
			continue
		}
		score := 1.0
		if m != nil {
			factor := m.score(&e)
			if factor == 0 {
				continue
			}
			score *= factor
		}
		score *= bonus(&e, now)

		r := Result{Entry: e, Score: score, Preview: e.Preview}
		if m != nil {
			r.MatchedTerms = m.matchedTerms(&e)
			r.Highlights = m.spans(e.Preview)
		}
		results = append(results, r)
	}

	sortResults(results, c.SortBy)
	return results
}

func passesFilters(e *entry.Entry, c Criteria) bool {
	if c.Kind != nil && e.Kind != *c.Kind {
		return false
	}
	if c.Since != nil && e.CreatedAt.Before(*c.Since) {
		return false
	}
	if c.Until != nil && e.CreatedAt.After(*c.Until) {
		return false
	}
	if c.FavoritesOnly && !e.Favorite {
		return false
	}
	if len(c.Tags) > 0 && !hasAnyTag(e.Tags, c.Tags) {
		return false
	}
	if c.MinSize != nil && e.SizeBytes < *c.MinSize {
		return false
	}
	if c.MaxSize != nil && e.SizeBytes > *c.MaxSize {
		return false
	}
	return true
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

// bonus applies the favorite, usage and recency multipliers.
func bonus(e *entry.Entry, now time.Time) float64 {
	b := 1.0
	if e.Favorite {
		b *= favoriteBonus
	}
	b *= 1 + usageWeight*math.Log10(float64(e.UsageCount)+1)

	// Future timestamps (clock skew) count as age zero.
	if age := max(now.Sub(e.CreatedAt).Hours()/24, 0); age < recentDays {
		b *= 1 + createdWeight*(recentDays-age)
	}
	if e.LastUsedAt != nil {
		if since := max(now.Sub(*e.LastUsedAt).Hours()/24, 0); since < recentDays {
			b *= 1 + lastUsedWeight*(recentDays-since)
		}
	}
	return b
}

// matcher scores the query against an entry's searchable fields.
type matcher struct {
	query  string
	tokens []string
	fold   bool
	re     *regexp.Regexp
	regex  bool
}

func newMatcher(c Criteria) *matcher {
	q := strings.TrimSpace(c.Query)
	if q == "" {
		return nil
	}
	m := &matcher{query: q, tokens: strings.Fields(q), fold: !c.CaseSensitive, regex: c.Regex}
	if c.Regex {
		pattern := q
		if m.fold {
			pattern = "(?i)" + pattern
		}
		// An invalid pattern leaves re nil: literal substring fallback.
		m.re, _ = regexp.Compile(pattern)
	}
	return m
}

func (m *matcher) fields(e *entry.Entry) []string {
	return []string{e.Content(), e.Preview, strings.Join(e.Tags, " ")}
}

func (m *matcher) norm(s string) string {
	if m.fold {
		return strings.ToLower(s)
	}
	return s
}

// score returns the best text-match factor over the entry's fields.
func (m *matcher) score(e *entry.Entry) float64 {
	best := 0.0
	for _, f := range m.fields(e) {
		if strings.TrimSpace(f) == "" {
			continue
		}
		best = max(best, m.fieldScore(f))
	}
	return best
}

func (m *matcher) fieldScore(field string) float64 {
	if m.regex {
		if m.re == nil {
			if strings.Contains(m.norm(field), m.norm(m.query)) {
				return literalFallback
			}
			return 0
		}
		n := len(m.re.FindAllStringIndex(field, -1))
		return math.Min(float64(n)*regexPerMatch, regexCap)
	}

	f, q := m.norm(field), m.norm(m.query)
	found := 0
	for _, tok := range m.tokens {
		if strings.Contains(f, m.norm(tok)) {
			found++
		}
	}
	s := float64(found) / float64(len(m.tokens))
	if strings.Contains(f, q) {
		s *= verbatimBonus
	}
	if strings.HasPrefix(f, q) {
		s *= prefixBonus
	}
	return s
}

// matchedTerms lists the distinct query tokens found in any field.
func (m *matcher) matchedTerms(e *entry.Entry) []string {
	content, preview := m.norm(e.Content()), m.norm(e.Preview)
	var out []string
	for _, tok := range m.tokens {
		t := m.norm(tok)
		if slices.Contains(out, tok) {
			continue
		}
		hit := strings.Contains(content, t) || strings.Contains(preview, t) ||
			slices.ContainsFunc(e.Tags, func(tag string) bool { return strings.Contains(m.norm(tag), t) })
		if hit {
			out = append(out, tok)
		}
	}
	return out
}

func sortResults(results []Result, order SortOrder) {
	var less func(a, b Result) int
	switch order {
	case SortDateAsc:
		less = func(a, b Result) int { return a.Entry.CreatedAt.Compare(b.Entry.CreatedAt) }
	case SortUsageDesc:
		less = func(a, b Result) int { return cmp.Compare(b.Entry.UsageCount, a.Entry.UsageCount) }
	case SortUsageAsc:
		less = func(a, b Result) int { return cmp.Compare(a.Entry.UsageCount, b.Entry.UsageCount) }
	case SortSizeDesc:
		less = func(a, b Result) int { return cmp.Compare(b.Entry.SizeBytes, a.Entry.SizeBytes) }
	case SortSizeAsc:
		less = func(a, b Result) int { return cmp.Compare(a.Entry.SizeBytes, b.Entry.SizeBytes) }
	case SortKindThenDate:
		less = func(a, b Result) int {
			if c := cmp.Compare(a.Entry.Kind.Rank(), b.Entry.Kind.Rank()); c != 0 {
				return c
			}
			return b.Entry.CreatedAt.Compare(a.Entry.CreatedAt)
		}
	case SortRelevance:
		less = func(a, b Result) int { return cmp.Compare(b.Score, a.Score) }
	default:
		less = func(a, b Result) int { return b.Entry.CreatedAt.Compare(a.Entry.CreatedAt) }
	}
	slices.SortStableFunc(results, less)
}
