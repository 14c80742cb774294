// Package menu provides a deterministic, concurrency-safe text matcher over
// a tenant's menu catalog.
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options for thresholds and result caps
//   - Items are immutable after construction; only the alias table can grow,
//     guarded by a RWMutex
//   - Deterministic scoring and ordering (score desc, then name, then id)
//
// Search runs a cascade and returns the results of the first stage that
// produces any:
//
//  1. exact name (case and accent insensitive)          score 1.0
//  2. name contained in query or query contained in name,
//     on word boundaries                                 score 0.5 + 0.45 * shorter/longer
//  3. synonym or alias                                   score 0.95 (exact) / 0.9 (contained)
//  4. normalized edit-distance similarity above the
//     minimum similarity                                 score = similarity
//
// The matcher never guesses below the minimum similarity; an empty result
// means the caller has to ask the customer.
package menu

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

// ErrUnknownTarget is returned by AddSynonym when the target names no item.
var ErrUnknownTarget = errors.New("synonym target not in catalog")

// Item is a catalog entry as seen by the matcher.
type Item struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Price     float64  `json:"price"`
	Category  string   `json:"category"`
	Allergens []string `json:"allergens,omitempty"`
	Synonyms  []string `json:"synonyms,omitempty"`
}

// Stage identifies the cascade step that produced a match.
type Stage int

const (
	StageExact Stage = iota + 1
	StageContains
	StageSynonym
	StageFuzzy
)

func (s Stage) String() string {
	switch s {
	case StageExact:
		return "exact"
	case StageContains:
		return "contains"
	case StageSynonym:
		return "synonym"
	case StageFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// Match is a ranked catalog item.
type Match struct {
	Item  Item
	Score float64
	Stage Stage
}

// Matcher is the read side used by the classifier and the state machine.
type Matcher interface {
	Search(query string) []Match
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minSimilarity float64
	maxResults    int
	aliases       map[string]string
}

func defaultConfig() config {
	return config{
		minSimilarity: 0.6,
		maxResults:    10,
	}
}

// WithMinSimilarity sets the fuzzy acceptance threshold in (0,1).
func WithMinSimilarity(v float64) Option {
	return func(c *config) {
		if v > 0 && v < 1 {
			c.minSimilarity = v
		}
	}
}

// WithMaxResults caps the number of returned matches.
func WithMaxResults(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// WithSynonyms seeds catalog-level aliases (alias -> item name or id).
// Aliases whose target is unknown are ignored.
func WithSynonyms(aliases map[string]string) Option {
	return func(c *config) {
		c.aliases = aliases
	}
}

// ----------------------------------------------------------------------------
// Implementation

type entry struct {
	item   Item
	norm   string
	tokens []string
	syns   []string // normalized item synonyms
}

// Catalog is the per-tenant matcher.
type Catalog struct {
	cfg     config
	entries []entry
	byID    map[string]int

	mu      sync.RWMutex
	aliases map[string][]int // normalized alias -> entry indexes
}

// New builds a catalog from items. Items without a usable name are skipped.
func New(items []Item, opts ...Option) *Catalog {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	c := &Catalog{
		cfg:     cfg,
		entries: make([]entry, 0, len(items)),
		byID:    make(map[string]int, len(items)),
		aliases: make(map[string][]int),
	}
	for _, it := range items {
		n := Normalize(it.Name)
		if n == "" {
			continue
		}
		e := entry{item: it, norm: n, tokens: Tokens(n)}
		for _, s := range it.Synonyms {
			if ns := Normalize(s); ns != "" {
				e.syns = append(e.syns, ns)
			}
		}
		c.byID[it.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	for alias, target := range cfg.aliases {
		_ = c.AddSynonym(alias, target)
	}
	return c
}

// FromDomain adapts stored menu rows.
func FromDomain(rows []domain.MenuItem, opts ...Option) *Catalog {
	items := make([]Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, Item{
			ID:        r.ID,
			Name:      r.Name,
			Price:     r.Price,
			Category:  r.Category,
			Allergens: r.Allergens,
			Synonyms:  r.Synonyms,
		})
	}
	return New(items, opts...)
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.entries) }

// Items returns the items in catalog order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.item
	}
	return out
}

// Get returns the item with the given id.
func (c *Catalog) Get(id string) (Item, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Item{}, false
	}
	return c.entries[i].item, true
}

// AddSynonym registers alias for the item whose id or name equals target.
func (c *Catalog) AddSynonym(alias, target string) error {
	a := Normalize(alias)
	if a == "" {
		return ErrUnknownTarget
	}
	idx := -1
	if i, ok := c.byID[strings.TrimSpace(target)]; ok {
		idx = i
	} else {
		nt := Normalize(target)
		for i, e := range c.entries {
			if e.norm == nt {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return ErrUnknownTarget
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.aliases[a] {
		if existing == idx {
			return nil
		}
	}
	c.aliases[a] = append(c.aliases[a], idx)
	return nil
}

// Search ranks catalog items for query; see the package doc for the cascade.
func (c *Catalog) Search(query string) []Match {
	q := Normalize(query)
	if q == "" || len(c.entries) == 0 {
		return nil
	}
	stages := []func(string) map[int]float64{
		c.exact,
		c.contains,
		c.synonym,
		c.fuzzy,
	}
	for i, stage := range stages {
		if hits := stage(q); len(hits) > 0 {
			return c.rank(hits, Stage(i+1))
		}
	}
	return nil
}

func (c *Catalog) exact(q string) map[int]float64 {
	hits := map[int]float64{}
	for i, e := range c.entries {
		if e.norm == q {
			hits[i] = 1.0
		}
	}
	return hits
}

func (c *Catalog) contains(q string) map[int]float64 {
	hits := map[int]float64{}
	ql := len([]rune(q))
	for i, e := range c.entries {
		if !containsWord(e.norm, q) && !containsWord(q, e.norm) {
			continue
		}
		nl := len([]rune(e.norm))
		short, long := ql, nl
		if short > long {
			short, long = long, short
		}
		hits[i] = 0.5 + 0.45*float64(short)/float64(long)
	}
	return hits
}

func (c *Catalog) synonym(q string) map[int]float64 {
	hits := map[int]float64{}
	put := func(i int, s float64) {
		if s > hits[i] {
			hits[i] = s
		}
	}
	for i, e := range c.entries {
		for _, s := range e.syns {
			switch {
			case s == q:
				put(i, 0.95)
			case containsWord(q, s):
				put(i, 0.9)
			}
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for alias, idxs := range c.aliases {
		var s float64
		switch {
		case alias == q:
			s = 0.95
		case containsWord(q, alias):
			s = 0.9
		default:
			continue
		}
		for _, i := range idxs {
			put(i, s)
		}
	}
	return hits
}

func (c *Catalog) fuzzy(q string) map[int]float64 {
	hits := map[int]float64{}
	qt := Tokens(q)
	for i, e := range c.entries {
		best := Similarity(q, e.norm)
		if w := windowSimilarity(qt, e.tokens) * 0.95; w > best {
			best = w
		}
		for _, s := range e.syns {
			if v := Similarity(q, s) * 0.95; v > best {
				best = v
			}
		}
		if best > c.cfg.minSimilarity {
			hits[i] = best
		}
	}
	return hits
}

// windowSimilarity compares the query against every run of len(q) name
// tokens, so "piza" can find "Margherita Pizza".
func windowSimilarity(q, name []string) float64 {
	if len(q) == 0 || len(q) >= len(name) {
		return 0
	}
	qs := strings.Join(q, " ")
	best := 0.0
	for i := 0; i+len(q) <= len(name); i++ {
		if v := Similarity(qs, strings.Join(name[i:i+len(q)], " ")); v > best {
			best = v
		}
	}
	return best
}

func (c *Catalog) rank(hits map[int]float64, stage Stage) []Match {
	out := make([]Match, 0, len(hits))
	for i, s := range hits {
		out = append(out, Match{Item: c.entries[i].item, Score: s, Stage: stage})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		if out[a].Item.Name != out[b].Item.Name {
			return out[a].Item.Name < out[b].Item.Name
		}
		return out[a].Item.ID < out[b].Item.ID
	})
	if len(out) > c.cfg.maxResults {
		out = out[:c.cfg.maxResults]
	}
	return out
}
