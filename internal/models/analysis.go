package models

import (
	"fmt"
	"strings"
)

// Category classifies the nature of a support ticket.
type Category string

const (
	CategoryBug            Category = "bug"
	CategoryFeatureRequest Category = "feature_request"
	CategoryQuestion       Category = "question"
	CategoryComplaint      Category = "complaint"

	// DefaultCategory is used when the model returns a value outside the enum.
	DefaultCategory = CategoryQuestion
)

// Sentiment captures the customer's emotional tone.
type Sentiment string

const (
	SentimentPositive   Sentiment = "positive"
	SentimentNeutral    Sentiment = "neutral"
	SentimentNegative   Sentiment = "negative"
	SentimentFrustrated Sentiment = "frustrated"

	DefaultSentiment = SentimentNeutral
)

// Priority ranks how urgently a ticket needs attention.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"

	DefaultPriority = PriorityLow
)

// ParseCategory coerces a model-provided category string into the enum.
// Unrecognized values map to DefaultCategory rather than failing.
func ParseCategory(s string) Category {
	switch normalizeEnum(s) {
	case "bug", "defect", "issue":
		return CategoryBug
	case "feature_request", "feature", "enhancement":
		return CategoryFeatureRequest
	case "question", "inquiry", "how_to":
		return CategoryQuestion
	case "complaint":
		return CategoryComplaint
	default:
		return DefaultCategory
	}
}

// ParseSentiment coerces a model-provided sentiment string into the enum.
func ParseSentiment(s string) Sentiment {
	switch normalizeEnum(s) {
	case "positive", "happy", "satisfied":
		return SentimentPositive
	case "neutral":
		return SentimentNeutral
	case "negative", "unhappy", "dissatisfied":
		return SentimentNegative
	case "frustrated", "angry", "very_negative":
		return SentimentFrustrated
	default:
		return DefaultSentiment
	}
}

// ParsePriority coerces a model-provided priority string into the enum.
func ParsePriority(s string) Priority {
	switch normalizeEnum(s) {
	case "low", "minor":
		return PriorityLow
	case "medium", "normal", "moderate":
		return PriorityMedium
	case "high", "major":
		return PriorityHigh
	case "critical", "urgent", "blocker":
		return PriorityCritical
	default:
		return DefaultPriority
	}
}

// normalizeEnum lowercases and collapses separators so "Feature Request",
// "feature-request" and "FEATURE_REQUEST" all compare equal.
func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

// TicketAnalysis is the layer-1 output: the structured extraction for one
// ticket. Exactly one analysis exists per ticket id, and every field is
// populated even on the fallback path.
type TicketAnalysis struct {
	TicketID    string    `json:"ticket_id"`
	Category    Category  `json:"category"`
	ProductArea string    `json:"product_area"`
	Sentiment   Sentiment `json:"sentiment"`
	Priority    Priority  `json:"priority"`
	Themes      []string  `json:"themes"`
	Summary     string    `json:"summary"`

	// Fallback marks records produced by error-fallback logic instead of a
	// successful model extraction. Fallback records are never cached.
	Fallback bool `json:"fallback,omitempty"`
}

// NewFallbackAnalysis builds the degraded-but-complete analysis used when a
// ticket cannot be extracted. All enum fields carry their defined defaults so
// downstream aggregation never sees a missing value.
func NewFallbackAnalysis(ticketID string, cause error) *TicketAnalysis {
	return &TicketAnalysis{
		TicketID:    ticketID,
		Category:    DefaultCategory,
		ProductArea: "unknown",
		Sentiment:   DefaultSentiment,
		Priority:    DefaultPriority,
		Themes:      []string{},
		Summary:     fmt.Sprintf("Failed to extract: %v", cause),
		Fallback:    true,
	}
}
