// Package intent classifies free-text customer messages with a static,
// explainable keyword table and extracts the entities the ordering flow
// needs (quantities, fulfillment type, postal codes, times, phone numbers
// and menu item fragments).
//
// Scoring: every intent owns one or more keyword sets and a base weight.
// confidence = (matched sets / total sets) * weight. The highest score wins
// and ties go to the intent declared first. Nothing matched means Unclear
// with confidence 0.
package intent

import (
	"strings"
	"unicode/utf8"

	"github.com/tbourn/orderflow-agent/internal/menu"
)

// Intent is a classified customer goal.
type Intent string

const (
	Allergy      Intent = "allergy"
	Confirm      Intent = "confirm"
	Cancel       Intent = "cancel"
	Complaint    Intent = "complaint"
	HumanRequest Intent = "human_request"
	Support      Intent = "support"
	OrderFood    Intent = "order_food"
	Fulfillment  Intent = "fulfillment"
	CheckInfo    Intent = "check_info"
	Greeting     Intent = "greeting"
	Unclear      Intent = "unclear"
)

// Entity types.
const (
	EntityQuantity     = "quantity"
	EntityFulfillment  = "fulfillment"
	EntityPostalCode   = "postal_code"
	EntityTime         = "time"
	EntityPhone        = "phone"
	EntityItem         = "item"
	EntityHumanRequest = "human_request"
	EntityFrustration  = "frustration"
	EntityDone         = "done"

	// EntitySevereAllergy marks words like "alvorlig" or "anaphylaxis"
	// that turn an allergen question into a staff matter.
	EntitySevereAllergy = "severe_allergy"
)

// Entity is a typed fragment extracted from the message.
type Entity struct {
	Type     string  `json:"type"`
	Value    string  `json:"value"`
	Quantity int     `json:"quantity,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

// Result is the classification of one message.
type Result struct {
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   []Entity `json:"entities,omitempty"`
	Language   string   `json:"language,omitempty"`

	// LanguageHits is how many indicator words Language leads by; a
	// single "pickup" in a Danish thread is not a reason to switch.
	LanguageHits int `json:"-"`

	// Text is the raw message. Items holds the per-segment menu lookups
	// when a menu is attached.
	Text  string        `json:"-"`
	Items []ItemRequest `json:"-"`
}

// Has reports whether an entity of type t was extracted.
func (r Result) Has(t string) bool {
	_, ok := r.First(t)
	return ok
}

// First returns the value of the first entity of type t.
func (r Result) First(t string) (string, bool) {
	for _, e := range r.Entities {
		if e.Type == t {
			return e.Value, true
		}
	}
	return "", false
}

// Metadata renders the result for ThreadMessage.Metadata.
func (r Result) Metadata() map[string]any {
	m := map[string]any{
		"intent":     string(r.Intent),
		"confidence": r.Confidence,
	}
	if r.Language != "" {
		m["language"] = r.Language
	}
	if len(r.Entities) > 0 {
		ents := make([]map[string]any, 0, len(r.Entities))
		for _, e := range r.Entities {
			ents = append(ents, map[string]any{"type": e.Type, "value": e.Value})
		}
		m["entities"] = ents
	}
	return m
}

// ----------------------------------------------------------------------------
// Keyword table

// keyword is a normalized phrase. A leading "^" in the table anchors it to
// the start of a message of at most three tokens ("ja", "ja tak"); anchored
// single characters ("1", "y") must be the whole message.
// Keywords shorter than four runes, and those written with a leading "=",
// only match whole words ("=gluten" does not match "glutenfri").
type keyword struct {
	text     string
	anchored bool
	word     bool
}

func compile(raw ...string) []keyword {
	out := make([]keyword, 0, len(raw))
	for _, r := range raw {
		anchored := strings.HasPrefix(r, "^")
		whole := strings.HasPrefix(r, "=")
		t := menu.Normalize(strings.TrimLeft(r, "^="))
		if t == "" {
			continue
		}
		out = append(out, keyword{text: t, anchored: anchored, word: whole || utf8.RuneCountInString(t) < 4})
	}
	return out
}

func (k keyword) match(text string, ntok int) bool {
	switch {
	case k.anchored && k.single():
		return text == k.text
	case k.anchored:
		return text == k.text || (ntok <= 3 && strings.HasPrefix(text, k.text+" "))
	case k.word:
		return strings.Contains(" "+text+" ", " "+k.text+" ")
	default:
		return strings.Contains(text, k.text)
	}
}

func (k keyword) single() bool { return utf8.RuneCountInString(k.text) == 1 }

func anyMatch(kws []keyword, text string, ntok int) bool {
	for _, k := range kws {
		if k.match(text, ntok) {
			return true
		}
	}
	return false
}

// features are message facts that count as a matched keyword set.
type features struct {
	menuHit bool // some segment matched the menu
	unitQty bool // "2 stk", "3x"
}

type kwSet struct {
	words []keyword
	extra func(features) bool
}

type def struct {
	intent Intent
	weight float64
	sets   []kwSet
}

func set(words ...string) kwSet { return kwSet{words: compile(words...)} }

// table is evaluated in declaration order; earlier entries win ties.
// Allergy outranks everything: an allergen question inside an order or a
// "ja" must never be read as anything else.
var table = []def{
	{Allergy, 0.99, []kwSet{
		set(allergyWords...),
	}},
	{Confirm, 0.95, []kwSet{
		set("^ja", "^yes", "^ok", "^okay", "^jep", "^yep", "^yeah", "^sure", "^1", "^y",
			"bekræft", "confirm", "godkend", "det er korrekt", "that is correct"),
	}},
	{Cancel, 0.95, []kwSet{
		set("^nej", "^no", "^nope", "^0", "^n", "^stop",
			"annuller", "cancel", "fortryd", "afbestil", "glem det", "forget it"),
	}},
	{Complaint, 0.9, []kwSet{
		set("klage", "complaint", "utilfreds", "unhappy", "refund", "refundering", "penge tilbage", "money back"),
	}},
	{HumanRequest, 0.9, []kwSet{
		set("tale med", "snakke med", "speak to", "talk to", "menneske", "human", "medarbejder",
			"rigtig person", "real person"),
	}},
	{Support, 0.85, []kwSet{
		set("hjælp", "help", "support", "kontakt", "contact"),
		set("problem", "fejl", "error", "virker ikke", "not working", "ikke modtaget", "never arrived"),
	}},
	{OrderFood, 0.9, []kwSet{
		set("bestil", "order", "køb", "buy"),
		set("vil have", "jeg vil", "i want", "gerne", "kan jeg", "can i", "i would like", "i d like", "skal have"),
		{
			words: compile("pizza", "burger", "salat", "salad", "mad", "food", "menu"),
			extra: func(f features) bool { return f.menuHit || f.unitQty },
		},
	}},
	{Fulfillment, 0.9, []kwSet{
		set(pickupWords...),
	}},
	{CheckInfo, 0.85, []kwSet{
		set("åbningstider", "opening", "hours", "hvornår", "when", "åben", "open", "lukket", "closed",
			"pris", "price", "koster", "cost", "hvor meget", "adresse", "address", "hvor ligger", "where are"),
	}},
	{Greeting, 0.9, []kwSet{
		set("^hej", "^hi", "^hello", "^goddag", "^hey", "^hallo", "^halløj",
			"^god morgen", "^good morning", "^godaften", "^good evening"),
	}},
}

// fulfillment keywords double as the entity lexicon.
var (
	pickupWords   = []string{"afhentning", "afhente", "pickup", "pick up", "hente", "henter", "takeaway", "take away"}
	deliveryWords = []string{"levering", "lever", "delivery", "deliver", "bringe", "udbringning", "kør"}
	pickupKW      = compile(pickupWords...)
	deliveryKW    = compile(deliveryWords...)
)

func init() {
	// the fulfillment intent accepts either direction
	for i := range table {
		if table[i].intent == Fulfillment {
			table[i].sets[0].words = append(table[i].sets[0].words, deliveryKW...)
		}
	}
}

// allergyWords name allergies and the common allergens customers ask about.
var allergyWords = []string{"allerg", "intoleran", "=nødder", "=nuts", "=nut", "=peanuts",
	"jordnød", "=gluten", "=laktose", "=lactose", "=skaldyr", "=shellfish", "cøliaki", "coeliac", "celiac"}

var (
	severeAllergyKW = compile("alvorlig", "svær", "severe", "anafylak", "anaphyla", "livstruende",
		"life threatening", "epipen", "allergisk chok", "allergic shock")
	humanKW = compile("tale med", "snakke med", "speak to", "talk to", "menneske", "human", "medarbejder",
		"rigtig person", "real person")
	frustrationKW = compile("irriteret", "irriterende", "frustreret", "forstår ikke", "forstår du ikke",
		"ubrugelig", "useless", "annoying", "frustrated", "doesn t understand", "don t understand",
		"hvad fanden", "wtf", "seriøst", "seriously")
	doneKW = compile("det var det", "det er alt", "det var alt", "færdig", "that s all", "that is all",
		"^done", "nej tak", "no thanks", "intet andet", "nothing else", "ikke mere", "no more")
)
