package models

import (
	"time"
)

// ClaimClassification labels what the model decided a text span is
type ClaimClassification string

const (
	// ClassificationMedicalClaim marks a span asserting a medical fact
	ClassificationMedicalClaim ClaimClassification = "medical_claim"
	// ClassificationNotMedical marks a span the verifier rejected as non-medical
	ClassificationNotMedical ClaimClassification = "not_medical"
)

// Citation is one web source attached to a verified claim
type Citation struct {
	Title    string `json:"title"`
	URI      string `json:"uri"`
	Snapshot string `json:"snapshot,omitempty"` // Readable markdown excerpt captured at verification time
}

// ClaimAlternative is a suggested rewording of a claim with its rationale
type ClaimAlternative struct {
	ImprovedClaim string `json:"improved_claim"`
	Explanation   string `json:"explanation"`
}

// ClaimRecord is a detected medical assertion with its grounded analysis.
// Records are written once per processing task and never updated.
type ClaimRecord struct {
	ID             string              `json:"id"` // rec_{uuid}
	SessionID      string              `json:"session_id" badgerhold:"index"`
	MessageID      string              `json:"message_id"`
	Text           string              `json:"text"` // The claim span as identified by the model
	Classification ClaimClassification `json:"classification"`
	Analysis       string              `json:"analysis"` // Markdown with inline [n][score] citation markers
	Alternatives   []ClaimAlternative  `json:"alternatives,omitempty"`
	Citations      []Citation          `json:"citations,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// ImpreciseLanguageRecord is a detected vague or overstated phrase with
// the model's suggested improvement. Same write-once lifecycle as ClaimRecord.
type ImpreciseLanguageRecord struct {
	ID         string    `json:"id"` // rec_{uuid}
	SessionID  string    `json:"session_id" badgerhold:"index"`
	MessageID  string    `json:"message_id"`
	Text       string    `json:"text"`
	Suggestion string    `json:"suggestion"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReviewResult is the in-memory outcome of one processing task, buffered
// until the whole AI pass succeeds so failures write nothing partial.
type ReviewResult struct {
	SessionID  string
	MessageID  string
	Claims     []*ClaimRecord
	Imprecise  []*ImpreciseLanguageRecord
	ModelReply string // Conversational text for the session transcript
}
