// Package intent – Classifier
//
// Scores a normalized message against the keyword table, attaches entities
// and menu matches, and applies the short and long input penalties.

package intent

import (
	"unicode/utf8"

	"github.com/tbourn/orderflow-agent/internal/menu"
)

const (
	shortInputTokens  = 2
	shortInputPenalty = 0.7
	longInputRunes    = 200
	longInputPenalty  = 0.85
)

// Classifier is safe for concurrent use. The zero value classifies without
// menu lookups.
type Classifier struct {
	menu menu.Matcher
}

// New returns a classifier without a menu.
func New() *Classifier { return &Classifier{} }

// WithMenu returns a copy that resolves item fragments against m.
func (c *Classifier) WithMenu(m menu.Matcher) *Classifier {
	cp := *c
	cp.menu = m
	return &cp
}

// Classify scores text against the keyword table and extracts entities.
func (c *Classifier) Classify(text string) Result {
	norm := menu.Normalize(text)
	toks := menu.Tokens(norm)
	res := Result{Intent: Unclear, Text: text}
	res.Language, res.LanguageHits = detectLanguage(text)
	if norm == "" {
		return res
	}

	res.Entities = extractEntities(text, norm, len(toks))
	if c.menu != nil {
		res.Items = c.ItemRequests(text)
		for _, r := range res.Items {
			if len(r.Matches) == 0 {
				continue
			}
			top := r.Matches[0]
			res.Entities = append(res.Entities, Entity{
				Type:     EntityItem,
				Value:    top.Item.Name,
				Quantity: r.Quantity,
				Score:    top.Score,
			})
		}
	}

	f := features{unitQty: hasUnitQuantity(text)}
	for _, r := range res.Items {
		if len(r.Matches) > 0 {
			f.menuHit = true
			break
		}
	}

	best, bestScore := Unclear, 0.0
	for _, d := range table {
		matched := 0
		for _, s := range d.sets {
			if anyMatch(s.words, norm, len(toks)) || (s.extra != nil && s.extra(f)) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		score := float64(matched) / float64(len(d.sets)) * d.weight
		if score > bestScore {
			best, bestScore = d.intent, score
		}
	}

	if best != Confirm && best != Cancel && best != Allergy && len(toks) <= shortInputTokens {
		bestScore *= shortInputPenalty
	}
	if utf8.RuneCountInString(text) > longInputRunes {
		bestScore *= longInputPenalty
	}
	res.Intent = best
	res.Confidence = bestScore
	return res
}

var defaultClassifier = New()

// Classify uses a menu-less classifier.
func Classify(text string) Result { return defaultClassifier.Classify(text) }
