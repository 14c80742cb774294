// Package conversation – reply templates
//
// Customer-facing texts in Danish and English with {{name}} placeholders.
// Danish is the fallback for unknown languages and missing keys.

package conversation

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MessageKey names a reply template.
type MessageKey string

const (
	MsgWelcome        MessageKey = "welcome"
	MsgAskItems       MessageKey = "ask_items"
	MsgAnythingElse   MessageKey = "anything_else"
	MsgItemNotFound   MessageKey = "item_not_found"
	MsgItemAmbiguous  MessageKey = "item_ambiguous"
	MsgAskFulfillment MessageKey = "ask_fulfillment"
	MsgAskAddress     MessageKey = "ask_address"
	MsgAskPhone       MessageKey = "ask_phone"
	MsgConfirmOrder   MessageKey = "confirm_order"
	MsgOrderPlaced    MessageKey = "order_placed"
	MsgDuplicate      MessageKey = "duplicate"
	MsgCancelled      MessageKey = "cancelled"
	MsgEscalating     MessageKey = "escalating"
	MsgTechnicalError MessageKey = "technical_error"
	MsgSupport        MessageKey = "support"
	MsgInfo           MessageKey = "info"
	MsgPickup         MessageKey = "pickup"
	MsgDeliveryTo     MessageKey = "delivery_to"
	MsgTotal          MessageKey = "total"

	// allergen answers; never a guarantee, always pointing at staff
	MsgAllergyWarning    MessageKey = "allergy_warning"
	MsgAllergyNone       MessageKey = "allergy_none"
	MsgAllergyAdvice     MessageKey = "allergy_advice"
	MsgAllergyAsk        MessageKey = "allergy_ask"
	MsgAllergyEscalating MessageKey = "allergy_escalating"
)

// DefaultLanguage is used when a draft has no detected language.
const DefaultLanguage = "da"

var templates = map[string]map[MessageKey]string{
	"da": {
		MsgWelcome:        "Hej! Velkommen. Hvad vil du gerne bestille?",
		MsgAskItems:       "Hvad vil du gerne bestille? Skriv fx \"2 margherita\".",
		MsgAnythingElse:   "Tilføjet: {{items}}. Ellers andet? Skriv \"færdig\", eller vælg afhentning eller levering.",
		MsgItemNotFound:   "Jeg kunne ikke finde \"{{query}}\" på menuen. Prøv med et andet navn.",
		MsgItemAmbiguous:  "Mente du {{options}}? Skriv navnet på retten.",
		MsgAskFulfillment: "Vil du hente ordren (afhentning) eller have den leveret (levering)?",
		MsgAskAddress:     "Hvad er leveringsadressen?",
		MsgAskPhone:       "Hvilket telefonnummer kan vi kontakte dig på?",
		MsgConfirmOrder:   "Din ordre:\n{{lines}}\n{{total}}\n{{fulfillment}}\nSkriv \"ja\" for at bekræfte eller \"nej\" for at annullere.",
		MsgOrderPlaced:    "Tak! Din ordre {{order}} er modtaget.",
		MsgDuplicate:      "Din ordre {{order}} er allerede modtaget.",
		MsgCancelled:      "Din bestilling er annulleret. Skriv når du vil starte forfra.",
		MsgEscalating:     "Jeg sender dig videre til en medarbejder, som vender tilbage hurtigst muligt.",
		MsgTechnicalError: "Beklager, der opstod en teknisk fejl. En medarbejder kontakter dig snarest.",
		MsgSupport:        "Det er jeg ked af at høre. Beskriv problemet, eller skriv \"medarbejder\" for at tale med en person.",
		MsgInfo:           "Det kan en medarbejder svare på. Vil du bestille noget imens?",
		MsgPickup:         "Afhentning",
		MsgDeliveryTo:     "Levering til {{address}}",
		MsgTotal:          "I alt: {{amount}}",

		MsgAllergyWarning:    "{{item}} kan indeholde {{allergens}}.",
		MsgAllergyNone:       "{{item}} har ingen registrerede allergener.",
		MsgAllergyAdvice:     "Ved alvorlig allergi anbefaler jeg at kontakte personalet direkte. Skriv \"medarbejder\", så bekræfter en medarbejder allergenerne.",
		MsgAllergyAsk:        "Hvilken ret vil du høre om? Skriv fx \"er der gluten i margherita\".",
		MsgAllergyEscalating: "Af hensyn til din sikkerhed beder jeg en medarbejder bekræfte allergenerne. Du kan også ringe direkte til os.",
	},
	"en": {
		MsgWelcome:        "Hi! Welcome. What would you like to order?",
		MsgAskItems:       "What would you like to order? For example \"2 margherita\".",
		MsgAnythingElse:   "Added: {{items}}. Anything else? Say \"done\", or choose pickup or delivery.",
		MsgItemNotFound:   "I couldn't find \"{{query}}\" on the menu. Try another name.",
		MsgItemAmbiguous:  "Did you mean {{options}}? Please write the name of the dish.",
		MsgAskFulfillment: "Would you like pickup or delivery?",
		MsgAskAddress:     "What is the delivery address?",
		MsgAskPhone:       "Which phone number can we reach you on?",
		MsgConfirmOrder:   "Your order:\n{{lines}}\n{{total}}\n{{fulfillment}}\nReply \"yes\" to confirm or \"no\" to cancel.",
		MsgOrderPlaced:    "Thank you! Your order {{order}} has been received.",
		MsgDuplicate:      "Your order {{order}} has already been received.",
		MsgCancelled:      "Your order has been cancelled. Write whenever you want to start over.",
		MsgEscalating:     "I'm passing you on to a member of staff who will get back to you shortly.",
		MsgTechnicalError: "Sorry, something went wrong on our side. A member of staff will contact you shortly.",
		MsgSupport:        "Sorry to hear that. Describe the problem, or write \"staff\" to talk to a person.",
		MsgInfo:           "A member of staff can answer that. Would you like to order something meanwhile?",
		MsgPickup:         "Pickup",
		MsgDeliveryTo:     "Delivery to {{address}}",
		MsgTotal:          "Total: {{amount}}",

		MsgAllergyWarning:    "{{item}} may contain {{allergens}}.",
		MsgAllergyNone:       "{{item}} has no registered allergens.",
		MsgAllergyAdvice:     "For severe allergies, I recommend contacting staff directly. Write \"staff\" and a member of staff will confirm the allergens.",
		MsgAllergyAsk:        "Which dish would you like to know about? For example \"is there gluten in the margherita\".",
		MsgAllergyEscalating: "For your safety I'm asking a member of staff to confirm the allergens. You are also welcome to call us directly.",
	},
}

// Render fills template key for lang. Unknown languages fall back to
// Danish; unknown keys render as the key itself.
func Render(lang string, key MessageKey, vars map[string]string) string {
	t, ok := templates[lang][key]
	if !ok {
		t, ok = templates[DefaultLanguage][key]
	}
	if !ok {
		return string(key)
	}
	for k, v := range vars {
		t = strings.ReplaceAll(t, "{{"+k+"}}", v)
	}
	return t
}

func printer(lang string) *message.Printer {
	if lang == "en" {
		return message.NewPrinter(language.English)
	}
	return message.NewPrinter(language.Danish)
}

// FormatAmount renders a price the way the customer's language writes it
// ("178,00 DKK" in Danish).
func FormatAmount(lang string, amount float64, currency string) string {
	s := printer(lang).Sprintf("%.2f", amount)
	if currency == "" {
		return s
	}
	return s + " " + currency
}

// orList joins options as "a, b eller c" / "a, b or c".
func orList(lang string, opts []string) string {
	if lang == "en" {
		return joinList(opts, " or ")
	}
	return joinList(opts, " eller ")
}

// andList joins words as "a, b og c" / "a, b and c".
func andList(lang string, words []string) string {
	if lang == "en" {
		return joinList(words, " and ")
	}
	return joinList(words, " og ")
}

func joinList(opts []string, word string) string {
	switch len(opts) {
	case 0:
		return ""
	case 1:
		return opts[0]
	}
	return strings.Join(opts[:len(opts)-1], ", ") + word + opts[len(opts)-1]
}
