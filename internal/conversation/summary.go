// Package conversation – order summary
//
// Renders the confirmation summary and computes the hash that makes a
// repeated "ja" on a completed order a no-op.

package conversation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

// SummaryHash fingerprints what the customer is confirming: the sorted
// item quantities, fulfillment, address and phone. Two confirmations of the
// same content hash the same and materialize one order.
func SummaryHash(d domain.Draft) string {
	qty := map[string]int{}
	for _, it := range d.Items {
		qty[it.MenuItemID] += it.Quantity
	}
	ids := make([]string, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids)+3)
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s:%d", id, qty[id]))
	}
	parts = append(parts, d.Fulfillment, strings.TrimSpace(d.Address), d.Phone)
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Summary renders the confirmation prompt.
func Summary(d domain.Draft, currency string) string {
	lang := langOf(d)
	lines := make([]string, 0, len(d.Items))
	for _, it := range d.Items {
		lines = append(lines, fmt.Sprintf("%d x %s  %s", it.Quantity, it.Name, FormatAmount(lang, it.LineTotal(), currency)))
	}
	ful := Render(lang, MsgPickup, nil)
	if d.Fulfillment == domain.FulfillmentDelivery {
		ful = Render(lang, MsgDeliveryTo, map[string]string{"address": d.Address})
	}
	return Render(lang, MsgConfirmOrder, map[string]string{
		"lines":       strings.Join(lines, "\n"),
		"total":       Render(lang, MsgTotal, map[string]string{"amount": FormatAmount(lang, d.Subtotal(), currency)}),
		"fulfillment": ful,
	})
}

func langOf(d domain.Draft) string {
	if d.Language == "" {
		return DefaultLanguage
	}
	return d.Language
}
