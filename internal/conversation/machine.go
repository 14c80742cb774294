// Package conversation drives an order draft from the first greeting to a
// confirmed order. The Machine is pure: it takes a draft and a classified
// message and returns the next draft plus what to do about it (reply,
// materialize, escalate). Persistence, dispatch and order creation belong
// to the caller.
//
// State flow:
//
//	greeting -> collecting_items -> collecting_fulfillment -> collecting_contact -> confirming -> completed
//
// with cancelled as the other terminal state and RequiresHuman as an
// orthogonal flag that silences the machine until a person clears it.
package conversation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/tbourn/orderflow-agent/internal/channel"
	"github.com/tbourn/orderflow-agent/internal/domain"
	"github.com/tbourn/orderflow-agent/internal/intent"
	"github.com/tbourn/orderflow-agent/internal/menu"
)

// Outcome is what the caller must do after a transition.
type Outcome struct {
	// Reply is the text to send; empty when Suppressed, and empty when
	// Materialize is set (the caller renders MsgOrderPlaced with the order
	// number once the order exists).
	Reply string

	Intent     intent.Intent
	Confidence float64

	Materialize      bool
	Duplicate        bool
	Escalated        bool
	EscalationReason Reason
	Progress         bool
	Suppressed       bool
	// InfoRequest marks questions (opening hours, prices) a free-text
	// responder may answer instead of Reply.
	InfoRequest bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithPolicy replaces the escalation thresholds.
func WithPolicy(p Policy) Option { return func(m *Machine) { m.policy = p } }

// WithCurrency sets the currency shown in summaries.
func WithCurrency(c string) Option {
	return func(m *Machine) {
		if c != "" {
			m.currency = c
		}
	}
}

// WithCountryCode sets the prefix for local phone numbers typed by customers.
func WithCountryCode(cc string) Option {
	return func(m *Machine) {
		if cc != "" {
			m.countryCode = cc
		}
	}
}

// WithMatchThreshold sets the score below which an item is never added
// without asking.
func WithMatchThreshold(v float64) Option {
	return func(m *Machine) {
		if v > 0 && v < 1 {
			m.matchThreshold = v
		}
	}
}

// Machine is safe for concurrent use; it holds no per-thread state.
type Machine struct {
	classifier     *intent.Classifier
	policy         Policy
	currency       string
	countryCode    string
	matchThreshold float64
	ambiguityGap   float64
	// lookup resolves draft items back to catalog entries for allergen
	// answers; nil when the menu cannot look items up by id.
	lookup         itemLookup
}

type itemLookup interface {
	Get(id string) (menu.Item, bool)
}

// NewMachine builds a machine over a tenant's menu. A nil menu disables
// item recognition.
func NewMachine(m menu.Matcher, opts ...Option) *Machine {
	mc := &Machine{
		classifier:     intent.New(),
		policy:         DefaultPolicy(),
		currency:       "DKK",
		countryCode:    channel.DefaultCountryCode,
		matchThreshold: 0.6,
		ambiguityGap:   0.05,
	}
	if m != nil {
		mc.classifier = mc.classifier.WithMenu(m)
		mc.lookup, _ = m.(itemLookup)
	}
	for _, o := range opts {
		o(mc)
	}
	return mc
}

// Policy returns the escalation thresholds in use.
func (m *Machine) Policy() Policy { return m.policy }

// NewDraft returns a fresh draft. SMS threads know the phone number up front.
func NewDraft(threadID, ch, phone string) domain.Draft {
	return domain.Draft{
		ThreadID: threadID,
		Channel:  ch,
		State:    domain.StateGreeting,
		Phone:    phone,
		Language: DefaultLanguage,
	}
}

// Reset starts a new order on the same thread, keeping who the customer is.
func Reset(d domain.Draft) domain.Draft {
	n := NewDraft(d.ThreadID, d.Channel, d.Phone)
	n.Name = d.Name
	n.Language = langOf(d)
	n.Version = d.Version
	return n
}

// Classify exposes the machine's menu-aware classifier.
func (m *Machine) Classify(text string) intent.Result { return m.classifier.Classify(text) }

// Step classifies text and transitions d.
func (m *Machine) Step(d domain.Draft, text string) (domain.Draft, Outcome) {
	return m.Transition(d, m.classifier.Classify(text))
}

// Transition applies one classified message to d.
func (m *Machine) Transition(d domain.Draft, r intent.Result) (domain.Draft, Outcome) {
	out := Outcome{Intent: r.Intent, Confidence: r.Confidence}
	if d.RequiresHuman {
		out.Suppressed = true
		return d, out
	}
	d = adoptLanguage(d, r)
	if d.State == "" {
		d.State = domain.StateGreeting
	}

	if d.State.Terminal() {
		if d.State == domain.StateCompleted && r.Intent == intent.Confirm &&
			d.SummaryHash != "" && d.SummaryHash == SummaryHash(d) {
			out.Duplicate = true
			out.Reply = Render(langOf(d), MsgDuplicate, map[string]string{"order": d.OrderNumber})
			return d, out
		}
		d = adoptLanguage(Reset(d), r)
	}

	before := progressKey(d)
	d.LastIntent = string(r.Intent)

	switch {
	case r.Intent == intent.Complaint:
		return m.escalate(d, out, ReasonComplaint)
	case r.Intent == intent.HumanRequest,
		r.Intent == intent.Support && r.Has(intent.EntityHumanRequest):
		return m.escalate(d, out, ReasonHumanRequest)
	}
	if r.Intent == intent.Allergy {
		return m.onAllergy(d, r, out)
	}
	if r.Intent == intent.Support || r.Has(intent.EntityFrustration) {
		d.FrustrationCount++
		if m.policy.ShouldEscalate(d, ReasonFrustration) {
			return m.escalate(d, out, ReasonFrustration)
		}
	}

	// "nej tak" while collecting items means "nothing more", not cancel
	if r.Intent == intent.Cancel && !(d.State == domain.StateCollectingItems && r.Has(intent.EntityDone)) {
		d = clearOrder(d)
		d.LowConfidenceTurns = 0
		out.Reply = Render(langOf(d), MsgCancelled, nil)
		out.Progress = true
		return d, out
	}

	switch d.State {
	case domain.StateCollectingItems:
		d, out = m.onItems(d, r, out)
	case domain.StateCollectingFulfillment:
		d, out = m.onFulfillment(d, r, out)
	case domain.StateCollectingContact:
		d, out = m.onContact(d, r, out)
	case domain.StateConfirming:
		d, out = m.onConfirming(d, r, out)
	default:
		d, out = m.onGreeting(d, r, out)
	}
	if out.Materialize {
		out.Progress = true
		d.LowConfidenceTurns = 0
		return d, out
	}

	if m.policy.ShouldEscalate(d, ReasonCatering) {
		return m.escalate(d, out, ReasonCatering)
	}

	out.Progress = progressKey(d) != before
	if r.Confidence < m.policy.LowConfidenceFloor && !out.Progress {
		d.LowConfidenceTurns++
		if m.policy.ShouldEscalate(d, ReasonLowConfidence) {
			return m.escalate(d, out, ReasonLowConfidence)
		}
	} else {
		d.LowConfidenceTurns = 0
	}
	return d, out
}

// RecordFailure counts a failed turn (store or dispatch error) and
// escalates once the retry budget is spent.
func (m *Machine) RecordFailure(d domain.Draft) (domain.Draft, Outcome) {
	d.RetryCount++
	out := Outcome{Reply: Render(langOf(d), MsgTechnicalError, nil)}
	if m.policy.ShouldEscalate(d, ReasonTechnical) {
		d.RequiresHuman = true
		out.Escalated = true
		out.EscalationReason = ReasonTechnical
	}
	return d, out
}

// strongLanguageHits is the lead that switches language mid-conversation.
const strongLanguageHits = 2

// adoptLanguage follows the customer's language on the first turn of an
// order and afterwards only on a clear signal.
func adoptLanguage(d domain.Draft, r intent.Result) domain.Draft {
	if r.Language == "" || r.Language == d.Language {
		return d
	}
	if d.LastIntent == "" || r.LanguageHits >= strongLanguageHits {
		d.Language = r.Language
	}
	return d
}

func (m *Machine) escalate(d domain.Draft, out Outcome, reason Reason) (domain.Draft, Outcome) {
	d.RequiresHuman = true
	out.Escalated = true
	out.EscalationReason = reason
	out.Progress = false
	out.InfoRequest = false
	out.Reply = Render(langOf(d), MsgEscalating, nil)
	return d, out
}

// ----------------------------------------------------------------------------
// States

// onAllergy answers allergen questions from the catalog and never touches
// the order. Items named in the message take precedence over the draft.
func (m *Machine) onAllergy(d domain.Draft, r intent.Result, out Outcome) (domain.Draft, Outcome) {
	d.LowConfidenceTurns = 0
	if r.Has(intent.EntitySevereAllergy) && m.policy.ShouldEscalate(d, ReasonAllergy) {
		d, out = m.escalate(d, out, ReasonAllergy)
		out.Reply = Render(langOf(d), MsgAllergyEscalating, nil)
		return d, out
	}

	lang := langOf(d)
	items := m.allergyItems(d, r)
	if len(items) == 0 {
		out.Reply = Render(lang, MsgAllergyAsk, nil)
		return d, out
	}
	lines := make([]string, 0, len(items)+1)
	for _, it := range items {
		if len(it.Allergens) == 0 {
			lines = append(lines, Render(lang, MsgAllergyNone, map[string]string{"item": it.Name}))
			continue
		}
		lines = append(lines, Render(lang, MsgAllergyWarning, map[string]string{
			"item":      it.Name,
			"allergens": andList(lang, it.Allergens),
		}))
	}
	lines = append(lines, Render(lang, MsgAllergyAdvice, nil))
	out.Reply = strings.Join(lines, "\n")
	return d, out
}

func (m *Machine) allergyItems(d domain.Draft, r intent.Result) []menu.Item {
	seen := map[string]bool{}
	var items []menu.Item
	for _, req := range r.Items {
		if len(req.Matches) == 0 || req.Matches[0].Score < m.matchThreshold {
			continue
		}
		it := req.Matches[0].Item
		if !seen[it.ID] {
			seen[it.ID] = true
			items = append(items, it)
		}
	}
	if len(items) > 0 || m.lookup == nil {
		return items
	}
	for _, di := range d.Items {
		it, ok := m.lookup.Get(di.MenuItemID)
		if ok && !seen[it.ID] {
			seen[it.ID] = true
			items = append(items, it)
		}
	}
	return items
}

func (m *Machine) onGreeting(d domain.Draft, r intent.Result, out Outcome) (domain.Draft, Outcome) {
	if r.Intent == intent.OrderFood || hasMenuHit(r) {
		d.State = domain.StateCollectingItems
		return m.onItems(d, r, out)
	}
	lang := langOf(d)
	switch r.Intent {
	case intent.CheckInfo:
		out.InfoRequest = true
		out.Reply = Render(lang, MsgInfo, nil)
	case intent.Support:
		out.Reply = Render(lang, MsgSupport, nil)
	default:
		out.Reply = Render(lang, MsgWelcome, nil)
	}
	return d, out
}

func (m *Machine) onItems(d domain.Draft, r intent.Result, out Outcome) (domain.Draft, Outcome) {
	lang := langOf(d)
	res := m.resolveItems(r)
	for _, it := range res.added {
		d.Items = mergeItem(d.Items, it)
	}

	if res.clarify != nil {
		names := make([]string, 0, 3)
		for i, mt := range res.clarify.Matches {
			if i == 3 {
				break
			}
			names = append(names, mt.Item.Name)
		}
		out.Reply = Render(lang, MsgItemAmbiguous, map[string]string{"options": orList(lang, names)})
		return d, out
	}

	next := r.Has(intent.EntityDone) || r.Has(intent.EntityFulfillment)
	switch {
	case len(res.added) > 0 && !next:
		out.Reply = Render(lang, MsgAnythingElse, map[string]string{"items": describe(res.added)})
		return d, out
	case len(res.added) == 0 && len(res.notFound) > 0 && !next &&
		(r.Intent == intent.OrderFood || r.Intent == intent.Unclear):
		out.Reply = Render(lang, MsgItemNotFound, map[string]string{"query": res.notFound[0]})
		return d, out
	case next && len(d.Items) > 0:
		applyFulfillment(&d, r)
		return m.advance(d, out)
	}

	switch r.Intent {
	case intent.CheckInfo:
		out.InfoRequest = true
		out.Reply = Render(lang, MsgInfo, nil)
	case intent.Support:
		out.Reply = Render(lang, MsgSupport, nil)
	default:
		out.Reply = Render(lang, MsgAskItems, nil)
	}
	return d, out
}

func (m *Machine) onFulfillment(d domain.Draft, r intent.Result, out Outcome) (domain.Draft, Outcome) {
	m.addConfident(&d, r)
	awaitingAddress := d.Fulfillment == domain.FulfillmentDelivery && strings.TrimSpace(d.Address) == ""
	if v, _ := r.First(intent.EntityFulfillment); awaitingAddress && v != domain.FulfillmentPickup {
		text := r.Text
		if sub := deliveryToRe.FindStringSubmatch(text); sub != nil {
			text = sub[1]
		}
		if a := addressText(text); a != "" {
			d.Address = a
		}
		return m.advance(d, out)
	}
	applyFulfillment(&d, r)
	return m.advance(d, out)
}

func (m *Machine) onContact(d domain.Draft, r intent.Result, out Outcome) (domain.Draft, Outcome) {
	if v, ok := r.First(intent.EntityPhone); ok {
		d.Phone = channel.NormalizePhone(v, m.countryCode)
	}
	applyFulfillment(&d, r)
	return m.advance(d, out)
}

func (m *Machine) onConfirming(d domain.Draft, r intent.Result, out Outcome) (domain.Draft, Outcome) {
	if r.Intent == intent.Confirm && ready(d) {
		d.SummaryHash = SummaryHash(d)
		d.State = domain.StateCompleted
		out.Materialize = true
		return d, out
	}
	m.addConfident(&d, r)
	if r.Has(intent.EntityFulfillment) {
		applyFulfillment(&d, r)
	}
	return m.advance(d, out)
}

// advance moves the draft to the first missing piece of information, so
// confirming is only reachable with everything an order needs.
func (m *Machine) advance(d domain.Draft, out Outcome) (domain.Draft, Outcome) {
	lang := langOf(d)
	switch {
	case len(d.Items) == 0:
		d.State = domain.StateCollectingItems
		out.Reply = Render(lang, MsgAskItems, nil)
	case d.Fulfillment == "":
		d.State = domain.StateCollectingFulfillment
		out.Reply = Render(lang, MsgAskFulfillment, nil)
	case d.Fulfillment == domain.FulfillmentDelivery && strings.TrimSpace(d.Address) == "":
		d.State = domain.StateCollectingFulfillment
		out.Reply = Render(lang, MsgAskAddress, nil)
	case d.Phone == "":
		d.State = domain.StateCollectingContact
		out.Reply = Render(lang, MsgAskPhone, nil)
	default:
		d.State = domain.StateConfirming
		d.SummaryHash = SummaryHash(d)
		out.Reply = Summary(d, m.currency)
	}
	return d, out
}

func ready(d domain.Draft) bool {
	if len(d.Items) == 0 || d.Fulfillment == "" || d.Phone == "" {
		return false
	}
	return d.Fulfillment != domain.FulfillmentDelivery || strings.TrimSpace(d.Address) != ""
}

// ----------------------------------------------------------------------------
// Items

type resolved struct {
	added    []domain.DraftItem
	clarify  *intent.ItemRequest
	notFound []string
}

// resolveItems never guesses: a request whose best match is below the
// threshold, or within ambiguityGap of the runner-up, asks instead.
func (m *Machine) resolveItems(r intent.Result) resolved {
	var res resolved
	for _, req := range r.Items {
		if len(req.Matches) == 0 {
			res.notFound = append(res.notFound, req.Query)
			continue
		}
		top := req.Matches[0]
		ambiguous := len(req.Matches) > 1 && top.Score-req.Matches[1].Score <= m.ambiguityGap
		if ambiguous || top.Score < m.matchThreshold {
			if res.clarify == nil {
				req := req
				res.clarify = &req
			}
			continue
		}
		res.added = append(res.added, domain.DraftItem{
			MenuItemID: top.Item.ID,
			Name:       top.Item.Name,
			Quantity:   req.Quantity,
			UnitPrice:  top.Item.Price,
		})
	}
	return res
}

// addConfident adds unambiguous items mentioned after the item step.
func (m *Machine) addConfident(d *domain.Draft, r intent.Result) {
	if r.Intent != intent.OrderFood {
		return
	}
	for _, it := range m.resolveItems(r).added {
		d.Items = mergeItem(d.Items, it)
	}
}

func mergeItem(items []domain.DraftItem, it domain.DraftItem) []domain.DraftItem {
	out := append([]domain.DraftItem(nil), items...)
	for i := range out {
		if out[i].MenuItemID == it.MenuItemID && sameModifiers(out[i].Modifiers, it.Modifiers) {
			out[i].Quantity += it.Quantity
			return out
		}
	}
	return append(out, it)
}

func sameModifiers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func describe(items []domain.DraftItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%d x %s", it.Quantity, it.Name))
	}
	return strings.Join(parts, ", ")
}

func hasMenuHit(r intent.Result) bool {
	for _, it := range r.Items {
		if len(it.Matches) > 0 {
			return true
		}
	}
	return false
}

func clearOrder(d domain.Draft) domain.Draft {
	d.State = domain.StateGreeting
	d.Items = nil
	d.Fulfillment = ""
	d.Address = ""
	d.SummaryHash = ""
	d.OrderNumber = ""
	return d
}

func progressKey(d domain.Draft) string {
	return string(d.State) + "|" + SummaryHash(d)
}

// ----------------------------------------------------------------------------
// Fulfillment

var deliveryToRe = regexp.MustCompile(`(?i)\b(?:levering|leveret|lever|delivery|deliver)\s+(?:til|to)\s+(.+)$`)

func applyFulfillment(d *domain.Draft, r intent.Result) {
	v, ok := r.First(intent.EntityFulfillment)
	if !ok {
		return
	}
	switch v {
	case domain.FulfillmentPickup:
		d.Fulfillment = domain.FulfillmentPickup
		d.Address = ""
	case domain.FulfillmentDelivery:
		d.Fulfillment = domain.FulfillmentDelivery
		if sub := deliveryToRe.FindStringSubmatch(r.Text); sub != nil {
			if a := addressText(sub[1]); a != "" {
				d.Address = a
			}
		}
	}
}

// addressText accepts free text as an address when it has both letters and
// a house number.
func addressText(s string) string {
	s = strings.TrimSpace(s)
	var letters, digits bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letters = true
		case unicode.IsDigit(r):
			digits = true
		}
	}
	if !letters || !digits || len([]rune(s)) < 4 {
		return ""
	}
	return s
}
