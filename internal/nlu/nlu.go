// Package nlu defines the contract with the external language-understanding
// collaborator and an HTTP client for it. The collaborator classifies each
// survivor message into an intent, typed entities, an emotional read, and
// crisis signals; the intake flow consumes the classification, never the
// model internals.
package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Intent labels emitted by the collaborator. The set is closed; unknown
// labels are treated as IntentUnknown by consumers.
const (
	IntentGreeting         = "greeting"
	IntentAffirm           = "affirm"
	IntentDeny             = "deny"
	IntentSkip             = "skip"
	IntentReportIncident   = "report_incident"
	IntentProvideInfo      = "provide_information"
	IntentEmergency        = "emergency"
	IntentSeekingResources = "seeking_resources"
	IntentEmotionalSupport = "emotional_support"
	IntentGoodbye          = "goodbye"
	IntentUnknown          = "unknown"
)

// Entity types the collaborator extracts.
const (
	EntityIncidentType = "incident_type"
	EntityTimeframe    = "timeframe"
	EntityLocation     = "location"
	EntityCounty       = "county"
	EntityRelationship = "relationship"
	EntitySupportNeed  = "support_need"
	EntityBarrier      = "barrier"
)

// Entity is one typed extraction from the message.
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Emotion is the collaborator's read of the message's affect.
type Emotion struct {
	Primary   string  `json:"primary"`
	Intensity float64 `json:"intensity"`
}

// Analysis is the full classification of one message.
type Analysis struct {
	Intent           string   `json:"intent"`
	Confidence       float64  `json:"confidence"`
	Entities         []Entity `json:"entities"`
	Emotion          Emotion  `json:"emotion"`
	CrisisDetected   bool     `json:"crisis_detected"`
	ReportInitiation bool     `json:"report_initiation"`
}

// Entity returns the first entity of the given type, or "" when absent.
func (a Analysis) Entity(typ string) string {
	for _, e := range a.Entities {
		if e.Type == typ {
			return e.Value
		}
	}
	return ""
}

// EntityValues returns every entity value of the given type in order.
func (a Analysis) EntityValues(typ string) []string {
	var out []string
	for _, e := range a.Entities {
		if e.Type == typ {
			out = append(out, e.Value)
		}
	}
	return out
}

// Analyzer classifies survivor messages. Implementations must be safe for
// concurrent use.
type Analyzer interface {
	Analyze(ctx context.Context, message, language string) (Analysis, error)
}

// Client calls the collaborator's /analyze endpoint over HTTP.
type Client struct {
	url  string
	http *http.Client
}

// NewClient builds a Client for the given analyze URL. The timeout bounds
// the whole round-trip.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	Message  string `json:"message"`
	Language string `json:"language"`
}

// Analyze posts the message and decodes the classification.
func (c *Client) Analyze(ctx context.Context, message, language string) (Analysis, error) {
	body, err := json.Marshal(analyzeRequest{Message: message, Language: language})
	if err != nil {
		return Analysis{}, fmt.Errorf("nlu: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Analysis{}, fmt.Errorf("nlu: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Analysis{}, fmt.Errorf("nlu: call analyzer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Analysis{}, fmt.Errorf("nlu: analyzer returned %d", resp.StatusCode)
	}

	var out Analysis
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Analysis{}, fmt.Errorf("nlu: decode response: %w", err)
	}
	if out.Intent == "" {
		out.Intent = IntentUnknown
	}
	return out, nil
}
