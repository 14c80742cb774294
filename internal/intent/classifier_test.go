package intent

import (
	"strings"
	"testing"

	"github.com/tbourn/orderflow-agent/internal/menu"
)

func testMenu() *menu.Catalog {
	return menu.New([]menu.Item{
		{ID: "p1", Name: "Margherita Pizza", Price: 89, Synonyms: []string{"margherita"}},
		{ID: "p2", Name: "Pepperoni Pizza", Price: 99},
		{ID: "p3", Name: "Caesar Salat", Price: 79, Synonyms: []string{"caesar salad"}},
		{ID: "p4", Name: "Cola", Price: 30, Synonyms: []string{"coca cola"}},
	})
}

func TestClassify_Intents(t *testing.T) {
	tests := []struct {
		text    string
		want    Intent
		minConf float64
	}{
		{"Jeg vil bestille en pizza", OrderFood, 0.5},
		{"Jeg vil gerne bestille en pizza", OrderFood, 0.7},
		{"hej kan jeg bestille en pizza", OrderFood, 0.5},
		{"ja", Confirm, 0.6},
		{"Ja tak", Confirm, 0.6},
		{"nej", Cancel, 0.8},
		{"Annuller min ordre", Cancel, 0.8},
		{"Hej!", Greeting, 0.5},
		{"Jeg har et problem med min ordre", Support, 0.4},
		{"Jeg vil hente den", Fulfillment, 0.8},
		{"levering tak", Fulfillment, 0.6},
		{"Hvad er jeres åbningstider i dag?", CheckInfo, 0.8},
		{"Jeg er meget utilfreds og vil have pengene tilbage", Complaint, 0.8},
		{"Kan jeg tale med en medarbejder", HumanRequest, 0.8},
		{"1", Confirm, 0.9},
		{"0", Cancel, 0.9},
	}
	for _, tt := range tests {
		got := Classify(tt.text)
		if got.Intent != tt.want {
			t.Fatalf("Classify(%q).Intent=%s want %s (conf %.2f)", tt.text, got.Intent, tt.want, got.Confidence)
		}
		if got.Confidence < tt.minConf {
			t.Fatalf("Classify(%q).Confidence=%.3f want >= %.2f", tt.text, got.Confidence, tt.minConf)
		}
		if got.Confidence < 0 || got.Confidence > 1 {
			t.Fatalf("confidence out of range: %v", got.Confidence)
		}
	}
}

func TestClassify_Unclear(t *testing.T) {
	for _, s := range []string{"", "   ", "qwerty zxcv", "!!!"} {
		got := Classify(s)
		if got.Intent != Unclear || got.Confidence != 0 {
			t.Fatalf("Classify(%q)=%+v want unclear/0", s, got)
		}
	}
}

func TestClassify_ShortInputPenalty(t *testing.T) {
	short := Classify("pizza")
	if short.Intent != OrderFood {
		t.Fatalf("intent=%s", short.Intent)
	}
	// one of three sets, then the short-input penalty
	want := 0.9 / 3 * shortInputPenalty
	if diff := short.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("confidence=%v want %v", short.Confidence, want)
	}
	if c := Classify("ja").Confidence; c != 0.95 {
		t.Fatalf("confirm should not be penalized: %v", c)
	}
}

func TestClassify_LongInputPenalty(t *testing.T) {
	long := "Jeg vil gerne bestille en pizza " + strings.Repeat("bla ", 60)
	got := Classify(long)
	if got.Intent != OrderFood {
		t.Fatalf("intent=%s", got.Intent)
	}
	if got.Confidence >= 0.9 {
		t.Fatalf("long input should be penalized: %v", got.Confidence)
	}
}

func TestClassify_SingleCharOnlyWholeMessage(t *testing.T) {
	if got := Classify("1 pizza"); got.Intent == Confirm {
		t.Fatalf("'1 pizza' must not confirm")
	}
	if got := Classify("y not"); got.Intent == Confirm {
		t.Fatalf("'y not' must not confirm")
	}
}

func TestClassify_HighestScoreWins(t *testing.T) {
	// confirm (0.95) outranks fulfillment (0.9)
	if got := Classify("ja tak levering"); got.Intent != Confirm {
		t.Fatalf("intent=%s", got.Intent)
	}
}

func TestClassify_TieBreakByDeclarationOrder(t *testing.T) {
	// confirm and cancel both score 0.95; confirm is declared first
	if got := Classify("bekræft annuller"); got.Intent != Confirm {
		t.Fatalf("intent=%s", got.Intent)
	}
}

func TestEntities(t *testing.T) {
	got := Classify("2 stk margherita")
	if !got.Has(EntityQuantity) {
		t.Fatalf("missing quantity: %+v", got.Entities)
	}
	if v, _ := got.First(EntityQuantity); v != "2" {
		t.Fatalf("quantity=%q", v)
	}

	got = Classify("Levering til Vestergade 12, 8000 Aarhus kl. 18:30, ring på +45 12 34 56 78")
	if v, _ := got.First(EntityFulfillment); v != "delivery" {
		t.Fatalf("fulfillment=%q", v)
	}
	if v, _ := got.First(EntityPostalCode); v != "8000" {
		t.Fatalf("postal=%q", v)
	}
	if v, _ := got.First(EntityTime); v != "18:30" {
		t.Fatalf("time=%q", v)
	}
	if v, _ := got.First(EntityPhone); v != "+4512345678" {
		t.Fatalf("phone=%q", v)
	}

	got = Classify("Jeg henter selv")
	if v, _ := got.First(EntityFulfillment); v != "pickup" {
		t.Fatalf("pickup=%q", v)
	}
	if !Classify("jeg vil tale med et menneske").Has(EntityHumanRequest) {
		t.Fatalf("missing human_request")
	}
	if !Classify("du forstår ikke hvad jeg siger").Has(EntityFrustration) {
		t.Fatalf("missing frustration")
	}
	if !Classify("det var det").Has(EntityDone) {
		t.Fatalf("missing done")
	}
	if Classify("hej").Has(EntityDone) {
		t.Fatalf("unexpected done")
	}
}

func TestWithMenu_ItemEntities(t *testing.T) {
	c := New().WithMenu(testMenu())
	got := c.Classify("margherita")
	if got.Intent != OrderFood {
		t.Fatalf("menu hit should count as order_food, got %s", got.Intent)
	}
	if v, ok := got.First(EntityItem); !ok || v != "Margherita Pizza" {
		t.Fatalf("item entity=%q", v)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 1 {
		t.Fatalf("items=%+v", got.Items)
	}

	// menu-less classifier is unaffected
	if New().Classify("margherita").Intent != Unclear {
		t.Fatalf("without menu, item names are unknown")
	}
}

func TestItemRequests(t *testing.T) {
	c := New().WithMenu(testMenu())
	tests := []struct {
		text string
		want []struct {
			query string
			qty   int
			id    string
		}
	}{
		{"hej kan jeg bestille en pizza", []struct {
			query string
			qty   int
			id    string
		}{{"pizza", 1, ""}}},
		{"2 margherita og en cola", []struct {
			query string
			qty   int
			id    string
		}{{"margherita", 2, "p1"}, {"cola", 1, "p4"}}},
		{"to pepperoni pizza, tre cola", []struct {
			query string
			qty   int
			id    string
		}{{"pepperoni pizza", 2, "p2"}, {"cola", 3, "p4"}}},
		{"I want to order a caesar salad please", []struct {
			query string
			qty   int
			id    string
		}{{"caesar salad", 1, "p3"}}},
		{"3x cola", []struct {
			query string
			qty   int
			id    string
		}{{"cola", 3, "p4"}}},
	}
	for _, tt := range tests {
		got := c.ItemRequests(tt.text)
		if len(got) != len(tt.want) {
			t.Fatalf("%q: got %d requests %+v", tt.text, len(got), got)
		}
		for i, w := range tt.want {
			if got[i].Query != w.query || got[i].Quantity != w.qty {
				t.Fatalf("%q[%d]: got %q x%d want %q x%d", tt.text, i, got[i].Query, got[i].Quantity, w.query, w.qty)
			}
			if w.id != "" && (len(got[i].Matches) == 0 || got[i].Matches[0].Item.ID != w.id) {
				t.Fatalf("%q[%d]: matches %+v want %s", tt.text, i, got[i].Matches, w.id)
			}
		}
	}
	if got := c.ItemRequests("ja tak"); len(got) != 0 {
		t.Fatalf("filler only should produce nothing: %+v", got)
	}
}

func TestItemRequests_QuantityClamp(t *testing.T) {
	got := New().ItemRequests("99 cola")
	if len(got) != 1 || got[0].Quantity != 99 || got[0].Matches != nil {
		t.Fatalf("got %+v", got)
	}
}

func TestDetectLanguage(t *testing.T) {
	if got := DetectLanguage("Jeg vil gerne bestille mad"); got != "da" {
		t.Fatalf("da: %q", got)
	}
	if got := DetectLanguage("I want to order food please"); got != "en" {
		t.Fatalf("en: %q", got)
	}
	if got := DetectLanguage("pizza"); got != "" {
		t.Fatalf("ambiguous: %q", got)
	}
	if r := Classify("pickup"); r.Language != "en" || r.LanguageHits != 1 {
		t.Fatalf("pickup: %s/%d", r.Language, r.LanguageHits)
	}
	if r := Classify("I want to order food please"); r.LanguageHits < 2 {
		t.Fatalf("hits=%d", r.LanguageHits)
	}
}

func TestResultMetadata(t *testing.T) {
	m := Classify("2 stk pizza tak").Metadata()
	if m["intent"] != "order_food" {
		t.Fatalf("metadata=%v", m)
	}
	if _, ok := m["entities"]; !ok {
		t.Fatalf("entities missing: %v", m)
	}
}

func TestClassify_Allergy(t *testing.T) {
	c := New().WithMenu(testMenu())
	tests := []struct {
		text   string
		severe bool
	}{
		{"er der gluten i margherita?", false},
		{"Jeg er allergisk over for nødder", false},
		{"does the pepperoni contain nuts?", false},
		{"laktose?", false},
		{"ja, men jeg har laktoseintolerance", false},
		{"jeg har en alvorlig nøddeallergi", true},
		{"my son has a severe peanut allergy", true},
	}
	for _, tt := range tests {
		got := c.Classify(tt.text)
		if got.Intent != Allergy {
			t.Fatalf("Classify(%q).Intent=%s want allergy", tt.text, got.Intent)
		}
		if got.Confidence < 0.9 {
			t.Fatalf("Classify(%q).Confidence=%.3f want >= 0.9", tt.text, got.Confidence)
		}
		if got.Has(EntitySevereAllergy) != tt.severe {
			t.Fatalf("Classify(%q) severe=%v want %v", tt.text, got.Has(EntitySevereAllergy), tt.severe)
		}
	}
}

func TestClassify_AllergenWordsInsideDishNames(t *testing.T) {
	c := New().WithMenu(testMenu())
	for _, s := range []string{"2 glutenfri pizza", "en nutella pizza tak"} {
		if got := c.Classify(s); got.Intent == Allergy {
			t.Fatalf("Classify(%q) = allergy", s)
		}
	}
}

func TestItemRequests_AllergyQuestionKeepsOnlyTheDish(t *testing.T) {
	c := New().WithMenu(testMenu())
	reqs := c.ItemRequests("er der nødder i margherita")
	if len(reqs) != 1 || len(reqs[0].Matches) == 0 || reqs[0].Matches[0].Item.ID != "p1" {
		t.Fatalf("reqs=%+v", reqs)
	}
}
