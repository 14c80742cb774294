// Package intent – entity extraction
//
// Regex and keyword extractors for the facts a message carries besides its
// intent: phone numbers, pickup times, postal codes, quantities and the
// fulfillment, escalation and "done" markers. ItemRequests splits an order
// message into per-dish segments and resolves them against the menu.

package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tbourn/orderflow-agent/internal/menu"
)

var (
	phoneRe    = regexp.MustCompile(`(?:\+|\b00)?\d[\d -]{6,16}\d`)
	timeRe     = regexp.MustCompile(`\b(?:kl\.?\s*)?((?:[01]?\d|2[0-3])[:.][0-5]\d)\b`)
	postalRe   = regexp.MustCompile(`\b(\d{4})\b`)
	quantityRe = regexp.MustCompile(`\b(\d{1,2})\s*(?:stk|styk|stykker|pcs|x)?\b`)
	unitQtyRe  = regexp.MustCompile(`\b\d{1,2}\s*(?:stk|styk|stykker|pcs|x)\b`)
	splitRe    = regexp.MustCompile(`[,;&+\n]`)
)

type span struct{ lo, hi int }

func overlaps(spans []span, lo, hi int) bool {
	for _, s := range spans {
		if lo < s.hi && s.lo < hi {
			return true
		}
	}
	return false
}

func hasUnitQuantity(raw string) bool {
	return unitQtyRe.MatchString(strings.ToLower(raw))
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// extractEntities runs the regex extractors on the lower-cased raw text
// (punctuation matters for times and phones) and the keyword lexicons on
// the normalized text.
func extractEntities(raw, norm string, ntok int) []Entity {
	lower := strings.ToLower(raw)
	var out []Entity
	var taken []span

	for _, m := range phoneRe.FindAllStringIndex(lower, -1) {
		v := strings.TrimSpace(lower[m[0]:m[1]])
		if digitCount(v) < 8 {
			continue
		}
		taken = append(taken, span{m[0], m[1]})
		out = append(out, Entity{Type: EntityPhone, Value: strings.NewReplacer(" ", "", "-", "").Replace(v)})
	}
	for _, m := range timeRe.FindAllStringSubmatchIndex(lower, -1) {
		if overlaps(taken, m[0], m[1]) {
			continue
		}
		taken = append(taken, span{m[0], m[1]})
		out = append(out, Entity{Type: EntityTime, Value: strings.Replace(lower[m[2]:m[3]], ".", ":", 1)})
	}
	for _, m := range postalRe.FindAllStringSubmatchIndex(lower, -1) {
		if overlaps(taken, m[0], m[1]) {
			continue
		}
		taken = append(taken, span{m[0], m[1]})
		out = append(out, Entity{Type: EntityPostalCode, Value: lower[m[2]:m[3]]})
	}
	for _, m := range quantityRe.FindAllStringSubmatchIndex(lower, -1) {
		if overlaps(taken, m[0], m[1]) {
			continue
		}
		n, _ := strconv.Atoi(lower[m[2]:m[3]])
		if n <= 0 {
			continue
		}
		out = append(out, Entity{Type: EntityQuantity, Value: lower[m[2]:m[3]], Quantity: n})
	}

	switch {
	case anyMatch(pickupKW, norm, ntok):
		out = append(out, Entity{Type: EntityFulfillment, Value: "pickup"})
	case anyMatch(deliveryKW, norm, ntok):
		out = append(out, Entity{Type: EntityFulfillment, Value: "delivery"})
	}
	if anyMatch(humanKW, norm, ntok) {
		out = append(out, Entity{Type: EntityHumanRequest, Value: "true"})
	}
	if anyMatch(frustrationKW, norm, ntok) {
		out = append(out, Entity{Type: EntityFrustration, Value: "true"})
	}
	if anyMatch(doneKW, norm, ntok) {
		out = append(out, Entity{Type: EntityDone, Value: "true"})
	}
	if anyMatch(severeAllergyKW, norm, ntok) {
		out = append(out, Entity{Type: EntitySevereAllergy, Value: "true"})
	}
	return out
}

// ----------------------------------------------------------------------------
// Item requests

// ItemRequest is one "<quantity> <item>" segment of a message.
type ItemRequest struct {
	// Query is the segment with quantity and filler words removed.
	Query    string       `json:"query"`
	Quantity int          `json:"quantity"` // 1..maxQuantity
	// Matches is ranked best first; empty when nothing cleared the
	// matcher's minimum similarity.
	Matches  []menu.Match `json:"-"`
}

const maxQuantity = 99

var numberWords = map[string]int{
	"en": 1, "et": 1, "one": 1, "a": 1, "an": 1,
	"to": 2, "two": 2, "par": 2,
	"tre": 3, "three": 3,
	"fire": 4, "four": 4,
	"fem": 5, "five": 5,
	"seks": 6, "six": 6,
	"syv": 7, "seven": 7,
	"otte": 8, "eight": 8,
	"ni": 9, "nine": 9,
	"ti": 10, "ten": 10,
}

// words that are also ordinary filler; only read as numbers when the next
// token carries content ("to pizza" but not "want to order").
var ambiguousNumbers = map[string]bool{"en": true, "et": true, "a": true, "an": true, "to": true, "par": true}

var unitWords = map[string]bool{"stk": true, "styk": true, "stykker": true, "pcs": true, "x": true, "gange": true}

var separators = map[string]bool{"og": true, "and": true, "samt": true, "plus": true}

var fillers = func() map[string]bool {
	words := []string{
		"jeg", "vi", "i", "vil", "gerne", "have", "skal", "kan", "må", "få", "gi", "giv", "mig", "os", "me", "us",
		"bestil", "bestille", "bestiller", "order", "ordre", "køb", "købe", "buy", "get", "take", "tage",
		"want", "would", "like", "d", "id", "ll", "please", "venligst", "tak", "thanks", "thank", "you",
		"hej", "hi", "hello", "hey", "hallo", "ja", "yes", "ok", "nej", "no",
		"the", "some", "nogle", "noget", "lige", "også", "also", "too", "just", "bare", "så",
		"for", "til", "af", "of", "med", "with", "min", "mine", "my", "den", "det", "de", "dem", "it",
		"tilføj", "add", "mere", "more", "another", "en", "et", "a", "an", "to",
		"er", "is", "der", "there", "har", "have", "has", "kunne", "could", "can", "may",
		// allergen questions ("er der nødder i margherita")
		"allergi", "allergisk", "allergier", "allergener", "allergy", "allergic", "allergies", "allergens",
		"nødder", "nuts", "gluten", "laktose", "lactose", "indeholder", "contain", "contains",
		"hvad", "what", "hvilke", "which", "over", "in", "mod", "does", "do",
	}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[menu.Normalize(w)] = true
	}
	return m
}()

func quantityToken(t string) (int, bool) {
	if n, ok := numberWords[t]; ok {
		return n, true
	}
	t = strings.TrimSuffix(strings.TrimPrefix(t, "x"), "x")
	if t == "" || len(t) > 2 {
		return 0, false
	}
	n, err := strconv.Atoi(t)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ItemRequests splits text into item segments ("2 margherita og en cola")
// and resolves each against the attached menu. Segments that reduce to
// filler words are dropped; quantity defaults to 1.
func (c *Classifier) ItemRequests(text string) []ItemRequest {
	var out []ItemRequest
	for _, piece := range splitRe.Split(text, -1) {
		var seg []string
		flush := func() {
			if r, ok := parseSegment(seg); ok {
				if c.menu != nil {
					r.Matches = c.menu.Search(r.Query)
				}
				out = append(out, r)
			}
			seg = seg[:0]
		}
		for _, t := range menu.Tokens(menu.Normalize(piece)) {
			if separators[t] {
				flush()
				continue
			}
			seg = append(seg, t)
		}
		flush()
	}
	return out
}

func parseSegment(toks []string) (ItemRequest, bool) {
	qty := 0
	var rest []string
	for i, t := range toks {
		if qty == 0 {
			if n, ok := quantityToken(t); ok {
				next := ""
				if i+1 < len(toks) {
					next = toks[i+1]
				}
				if !ambiguousNumbers[t] || (next != "" && !fillers[next]) {
					qty = n
					continue
				}
			}
		}
		if unitWords[t] || fillers[t] {
			continue
		}
		rest = append(rest, t)
	}
	if len(rest) == 0 {
		return ItemRequest{}, false
	}
	if qty == 0 {
		qty = 1
	}
	if qty > maxQuantity {
		qty = maxQuantity
	}
	return ItemRequest{Query: strings.Join(rest, " "), Quantity: qty}, true
}
