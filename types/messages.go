package types

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Alert is one Guardian safety alert.
type Alert struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// Number is a model-supplied figure. Models sometimes quote numbers as
// strings such as "3,400", "12%" or "₹1,500"; those are read as their value
// and anything unparseable reads as zero.
type Number float64

var numberNoise = strings.NewReplacer(",", "", "%", "", "₹", "", "Rs.", "", "Rs", "", " ", "")

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(numberNoise.Replace(strings.TrimSpace(s)), 64)
		if err != nil {
			f = 0
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// ROIComparison holds the current and suggested returns of an opportunity.
type ROIComparison struct {
	Current   Number `json:"current"`
	Suggested Number `json:"suggested"`
}

// Opportunity is one Catalyst growth opportunity.
type Opportunity struct {
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	ROIComparison *ROIComparison `json:"roi_comparison,omitempty"`
	ActionItems   []string       `json:"action_items,omitempty"`
}

// PriceAnalysis is the target and stop-loss analysis for a holding.
type PriceAnalysis struct {
	Target          Number `json:"target"`
	StopLoss        Number `json:"stop_loss"`
	PotentialReturn Number `json:"potential_return"`
}

// RiskAssessment rates the risk of a recommendation.
type RiskAssessment struct {
	Level           string `json:"level"`
	LevelPercentage Number `json:"level_percentage"`
	Description     string `json:"description"`
}

// Recommendation is one Strategist buy/sell/hold recommendation.
type Recommendation struct {
	Symbol         string          `json:"symbol"`
	Advice         string          `json:"advice"`
	Reasoning      string          `json:"reasoning"`
	CurrentPrice   *Number         `json:"current_price,omitempty"`
	PriceAnalysis  *PriceAnalysis  `json:"price_analysis,omitempty"`
	RiskAssessment *RiskAssessment `json:"risk_assessment,omitempty"`
	ActionItems    []string        `json:"action_items,omitempty"`
}

// AgentResponse is the envelope returned by the backend /agents router.
// Timestamp is fractional unix seconds.
type AgentResponse struct {
	Status            string  `json:"status"`
	Agent             string  `json:"agent"`
	Response          any     `json:"response,omitempty"`
	Alerts            any     `json:"alerts,omitempty"`
	Tips              any     `json:"tips,omitempty"`
	PortfolioAnalysis any     `json:"portfolio_analysis,omitempty"`
	Message           string  `json:"message,omitempty"`
	Error             string  `json:"error,omitempty"`
	Timestamp         float64 `json:"timestamp"`
}

func unixSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// NewAgentSuccess builds a success envelope; set one payload field on the result.
func NewAgentSuccess(agent string) *AgentResponse {
	return &AgentResponse{Status: StatusSuccess, Agent: agent, Timestamp: unixSeconds()}
}

// NewAgentError builds the error envelope shown when an agent fails.
func NewAgentError(agent string, err error) *AgentResponse {
	return &AgentResponse{
		Status:    StatusError,
		Agent:     agent,
		Message:   "Sorry, the " + agent + " agent is currently unavailable. Please try again later.",
		Error:     err.Error(),
		Timestamp: unixSeconds(),
	}
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      string `json:"type"` // "notification", "status", "heartbeat", "connection"
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	MessageID string `json:"messageId,omitempty"`
}

// NotificationPayload is what a websocket client receives for a push.
type NotificationPayload struct {
	NotificationType string            `json:"notification_type"`
	Title            string            `json:"title"`
	Body             string            `json:"body"`
	Data             map[string]string `json:"data,omitempty"`
}

// HealthCheckResponse is the body of GET /health.
type HealthCheckResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp,omitempty"`
}

const (
	WSTypeNotification = "notification"
	WSTypeStatus       = "status"
	WSTypeHeartbeat    = "heartbeat"
	WSTypeConnection   = "connection"

	StatusSuccess = "success"
	StatusError   = "error"
	StatusOK      = "ok"
)

// NewWebSocketMessage creates a new WebSocket message
func NewWebSocketMessage(msgType string, payload any) *WebSocketMessage {
	return &WebSocketMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: uuid.NewString(),
	}
}

// ToJSON converts the message to JSON
func (m *WebSocketMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
