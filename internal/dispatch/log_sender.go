package dispatch

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LogSender writes replies to the log instead of a provider. It is the
// default for channels without credentials and for local development.
type LogSender struct {
	Channel string
}

// Send logs the reply length and recipient; the text itself is not logged.
func (s LogSender) Send(ctx context.Context, to, text string) (Receipt, error) {
	id := uuid.NewString()
	log.Info().
		Str("channel", s.Channel).
		Str("to", maskRecipient(to)).
		Int("chars", len([]rune(text))).
		Str("message_id", id).
		Msg("reply logged (no provider configured)")
	return Receipt{Provider: "log", MessageID: id, Status: "logged"}, nil
}

// maskRecipient keeps the last four characters.
func maskRecipient(to string) string {
	r := []rune(to)
	if len(r) <= 4 {
		return "****"
	}
	for i := 0; i < len(r)-4; i++ {
		r[i] = '*'
	}
	return string(r)
}
