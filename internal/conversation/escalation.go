// Package conversation – escalation policy

package conversation

import "github.com/tbourn/orderflow-agent/internal/domain"

// Reason says why a thread was handed to a human.
type Reason string

const (
	ReasonComplaint     Reason = "complaint"
	ReasonHumanRequest  Reason = "human_request"
	ReasonFrustration   Reason = "frustration"
	ReasonLowConfidence Reason = "low_confidence"
	ReasonCatering      Reason = "catering"
	ReasonTechnical     Reason = "technical"
	ReasonAllergy       Reason = "allergy"
)

// Policy holds the escalation thresholds.
type Policy struct {
	FrustrationThreshold int
	LowConfidenceFloor   float64
	LowConfidenceTurns   int
	CateringQuantity     int
	MaxRetries           int
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		FrustrationThreshold: 2,
		LowConfidenceFloor:   0.3,
		LowConfidenceTurns:   2,
		CateringQuantity:     15,
		MaxRetries:           1,
	}
}

// ShouldEscalate reports whether the draft's counters warrant a handoff for
// reason. Complaints, explicit human requests and severe allergies always do.
func (p Policy) ShouldEscalate(d domain.Draft, reason Reason) bool {
	switch reason {
	case ReasonComplaint, ReasonHumanRequest, ReasonAllergy:
		return true
	case ReasonFrustration:
		return d.FrustrationCount >= p.FrustrationThreshold
	case ReasonLowConfidence:
		return d.LowConfidenceTurns >= p.LowConfidenceTurns
	case ReasonCatering:
		return p.CateringQuantity > 0 && d.TotalQuantity() > p.CateringQuantity
	case ReasonTechnical:
		return d.RetryCount >= p.MaxRetries
	default:
		return false
	}
}
