package voice

import "encoding/json"

// Event types sent by the voice agent platform.
const (
	EventCallStarted  = "call_started"
	EventCallEnded    = "call_ended"
	EventCallAnalyzed = "call_analyzed"
)

// CallEvent is the inbound webhook payload. Call metadata lives under Call;
// Analysis is present on call_analyzed events only.
type CallEvent struct {
	Event string `json:"event"`
	Call  struct {
		ID         string `json:"call_id"`
		FromNumber string `json:"from_number"`
		ToNumber   string `json:"to_number"`
		StartedAt  string `json:"start_timestamp"`
		EndedAt    string `json:"end_timestamp"`
		Transcript string `json:"transcript"`
	} `json:"call"`
	Analysis *CallAnalysis `json:"call_analysis,omitempty"`
}

// CallAnalysis is the post-call summary produced by the voice platform.
type CallAnalysis struct {
	Summary       string          `json:"call_summary"`
	UserSentiment string          `json:"user_sentiment"`
	Successful    bool            `json:"call_successful"`
	CustomData    json.RawMessage `json:"custom_analysis_data,omitempty"`
}

// CallRecord is what gets queued on the outbox for downstream handlers.
type CallRecord struct {
	CallID     string `json:"call_id"`
	CustomerID string `json:"customer_id,omitempty"`
	Phone      string `json:"phone"`
	Event      string `json:"event"`
	Summary    string `json:"summary,omitempty"`
	Sentiment  string `json:"sentiment,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Successful *bool  `json:"successful,omitempty"`
}
