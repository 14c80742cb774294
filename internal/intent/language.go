// Package intent – language detection
//
// Counts Danish and English indicator words. The winner's lead is reported
// alongside it so callers can tell a clear switch from a stray word.

package intent

import "github.com/tbourn/orderflow-agent/internal/menu"

var (
	danishWords = wordSet("jeg", "vil", "kan", "hvad", "hvor", "og", "det", "en", "er", "til", "med", "på", "af",
		"den", "de", "som", "har", "ikke", "var", "dig", "mig", "os", "tak", "hej", "goddag", "gerne",
		"bestille", "afhentning", "levering", "nej", "ja", "hente")
	englishWords = wordSet("i", "want", "can", "what", "where", "and", "the", "a", "is", "to", "with", "on", "of",
		"it", "that", "have", "not", "was", "you", "me", "us", "thanks", "hi", "hello", "please",
		"order", "pickup", "delivery", "yes", "no", "would", "like")
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[menu.Normalize(w)] = true
	}
	return m
}

// DetectLanguage returns "da" or "en" by counting indicator words, or ""
// when the text gives no signal either way.
func DetectLanguage(text string) string {
	lang, _ := detectLanguage(text)
	return lang
}

// detectLanguage also returns by how many indicator words the winner leads.
func detectLanguage(text string) (string, int) {
	var da, en int
	for _, t := range menu.Tokens(menu.Normalize(text)) {
		if danishWords[t] {
			da++
		}
		if englishWords[t] {
			en++
		}
	}
	switch {
	case da > en:
		return "da", da - en
	case en > da:
		return "en", en - da
	default:
		return "", 0
	}
}
