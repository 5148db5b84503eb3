package main

import "time"

// Message categories the classifier may assign.
const (
	CategoryBug            = "bug"
	CategoryFeatureRequest = "feature_request"
	CategoryComplaint      = "complaint"
	CategoryPraise         = "praise"
	CategoryDocumentation  = "documentation"
	CategoryOther          = "other"
)

// Severities, meaningful only for bugs and complaints.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Origin values for derived rows in bug_reports / feature_suggestions.
const (
	OriginBot      = "bot"
	OriginExternal = "external"
)

// BotTitlePrefix tags bot-authored derived rows so external ticket tools
// (and rows written before the origin column existed) can tell them apart
// from manually filed ones.
const BotTitlePrefix = "[Discord]"

type IncomingMessage struct {
	MessageID   string
	ChannelID   string
	ChannelName string
	GuildID     string
	GuildName   string
	AuthorID    string
	AuthorName  string
	AuthorIsBot bool
	Content     string
	Timestamp   time.Time
	URL         string
	Attachments []string
}

// Verdict is the structured output of one classifier call.
type Verdict struct {
	RequiresAlert  bool   `json:"requiresAlert"`
	Category       string `json:"category"`
	Severity       string `json:"severity,omitempty"`
	Summary        string `json:"summary"`
	Recommendation string `json:"recommendation"`
}

// FallbackVerdict is what the classifier yields when the model response
// cannot be parsed. Not an error: the message is simply not alerted on.
func FallbackVerdict() Verdict {
	return Verdict{
		RequiresAlert:  false,
		Category:       CategoryOther,
		Summary:        "Analysis inconclusive",
		Recommendation: "Review manually",
	}
}

type AlertRecord struct {
	ID             int64
	MessageID      string
	Category       string
	Severity       string
	Summary        string
	Recommendation string
	Timestamp      time.Time
}

// ExternalRecordKind names the derived table a monitor row came from.
type ExternalRecordKind string

const (
	KindBug     ExternalRecordKind = "bug"
	KindFeature ExternalRecordKind = "feature"
)

// ExternalRecord is a bug_reports or feature_suggestions row surfaced by the
// change monitor. Severity holds the bug severity or the feature priority.
type ExternalRecord struct {
	ID          int64
	Kind        ExternalRecordKind
	Title       string
	Description string
	Severity    string
	Status      string
	URL         string
	Origin      string
	CreatedAt   time.Time
}

// Category returns the routing category for the record's kind.
func (r ExternalRecord) Category() string {
	if r.Kind == KindFeature {
		return CategoryFeatureRequest
	}
	return CategoryBug
}

func validCategory(c string) bool {
	switch c {
	case CategoryBug, CategoryFeatureRequest, CategoryComplaint,
		CategoryPraise, CategoryDocumentation, CategoryOther:
		return true
	}
	return false
}

func validSeverity(s string) bool {
	switch s {
	case "", SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}
