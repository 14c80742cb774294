package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/orderflow-agent/internal/channel"
	"github.com/tbourn/orderflow-agent/internal/http/middleware"
	"github.com/tbourn/orderflow-agent/internal/services"
)

// WebhookResponse is the body of every SMS webhook reply.
type WebhookResponse = services.IngestResult

// MetaWebhookResponse summarizes a Messenger/Instagram delivery, which may
// batch several messages.
type MetaWebhookResponse struct {
	Status    string                  `json:"status" example:"success"`
	Processed int                     `json:"processed" example:"1"`
	Results   []services.IngestResult `json:"results,omitempty"`
	Reason    string                  `json:"reason,omitempty"`
}

// SMSWebhook godoc
// @ID          smsWebhook
// @Summary     Receive an inbound SMS
// @Description Accepts the InMobile, Twilio, MessageBird and generic gateway payloads as JSON or form data. Always answers 200; the status field tells the gateway whether the message was stored, a duplicate, ignored or failed.
// @Tags        Webhooks
// @Accept      json
// @Accept      x-www-form-urlencoded
// @Produce     json
// @Success     200  {object}  handlers.WebhookResponse
// @Router      /webhooks/sms [post]
func (h *Handlers) SMSWebhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusOK, WebhookResponse{Status: services.StatusIgnored, Reason: "unreadable body"})
		return
	}
	msg, err := h.opts.Parser.Parse(raw)
	if err != nil {
		middleware.LoggerFrom(c).Info().Err(err).Int("bytes", len(raw)).Msg("sms webhook payload not recognized")
		c.JSON(http.StatusOK, WebhookResponse{Status: services.StatusIgnored, Reason: channel.ErrUnrecognizedPayload.Error()})
		return
	}
	if msg.IDGenerated {
		middleware.LoggerFrom(c).Warn().Str("provider", msg.Provider).Msg("sms without provider message id, retries cannot be deduplicated")
	}
	c.JSON(http.StatusOK, h.ingestOne(c, *msg))
}

// MetaVerify godoc
// @ID          metaVerify
// @Summary     Meta webhook subscription handshake
// @Description Echoes hub.challenge when hub.mode is subscribe and hub.verify_token matches.
// @Tags        Webhooks
// @Produce     plain
// @Param       hub.mode          query  string  true  "subscribe"
// @Param       hub.verify_token  query  string  true  "Verify token"
// @Param       hub.challenge     query  string  true  "Challenge to echo"
// @Success     200  {string}  string  "challenge"
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /webhooks/meta [get]
func (h *Handlers) MetaVerify(c *gin.Context) {
	token := h.opts.MetaVerifyToken
	if token == "" || c.Query("hub.mode") != "subscribe" || c.Query("hub.verify_token") != token {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "verification failed")
		return
	}
	c.String(http.StatusOK, c.Query("hub.challenge"))
}

// MetaWebhook godoc
// @ID          metaWebhook
// @Summary     Receive Messenger and Instagram messages
// @Description Verifies X-Hub-Signature-256 when an app secret is configured, then ingests every text message of the delivery. Always answers 200.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
// @Param       X-Hub-Signature-256  header  string  false  "sha256=<hmac>"
// @Success     200  {object}  handlers.MetaWebhookResponse
// @Router      /webhooks/meta [post]
func (h *Handlers) MetaWebhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusOK, MetaWebhookResponse{Status: services.StatusIgnored, Reason: "unreadable body"})
		return
	}
	if h.opts.MetaAppSecret != "" && !channel.VerifyMetaSignature(raw, c.GetHeader("X-Hub-Signature-256"), h.opts.MetaAppSecret) {
		middleware.LoggerFrom(c).Warn().Msg("meta webhook signature mismatch")
		c.JSON(http.StatusOK, MetaWebhookResponse{Status: services.StatusIgnored, Reason: "invalid signature"})
		return
	}
	msgs, err := channel.ParseMeta(raw)
	if err != nil {
		c.JSON(http.StatusOK, MetaWebhookResponse{Status: services.StatusIgnored, Reason: channel.ErrUnrecognizedPayload.Error()})
		return
	}

	resp := MetaWebhookResponse{Results: make([]services.IngestResult, 0, len(msgs))}
	for _, m := range msgs {
		res := h.ingestOne(c, m)
		if res.Status == services.StatusSuccess {
			resp.Processed++
		}
		resp.Results = append(resp.Results, res)
	}
	resp.Status = summarize(resp.Results)
	c.JSON(http.StatusOK, resp)
}

// ingestOne applies the per-sender limit and runs the ingest pipeline.
func (h *Handlers) ingestOne(c *gin.Context, msg channel.InboundMessage) services.IngestResult {
	if h.limiter != nil && !h.limiter.Allow(msg.Channel+":"+msg.FromAddress) {
		return services.IngestResult{Status: services.StatusIgnored, Reason: "rate limited"}
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.IngestTimeout)
	defer cancel()

	res, err := h.ingest.Ingest(ctx, msg)
	if err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).
			Str("channel", msg.Channel).
			Str("external_id", msg.ExternalMessageID).
			Msg("ingest failed")
		if res.Status == "" {
			res.Status = services.StatusError
		}
		if errors.Is(err, context.DeadlineExceeded) {
			res.Reason = "timeout"
		}
	}
	return res
}

// summarize folds per-message outcomes: any success wins, then error, then
// duplicate; an empty delivery is ignored.
func summarize(results []services.IngestResult) string {
	seen := map[string]bool{}
	for _, r := range results {
		seen[r.Status] = true
	}
	for _, s := range []string{services.StatusSuccess, services.StatusError, services.StatusDuplicate} {
		if seen[s] {
			return s
		}
	}
	return services.StatusIgnored
}
