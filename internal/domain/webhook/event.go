package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Class groups provider event names by their effect on a transaction.
type Class string

const (
	ClassCredit  Class = "CREDIT"
	ClassFail    Class = "FAIL"
	ClassRefund  Class = "REFUND"
	ClassInfo    Class = "INFO"
	ClassUnknown Class = "UNKNOWN"
)

var eventClasses = map[string]Class{
	"complete": ClassCredit,
	"failed":   ClassFail,
	"fraud":    ClassFail,
	"refunded": ClassRefund,
	"disputed": ClassRefund,
	"new":      ClassInfo,
	"created":  ClassInfo,
	"released": ClassInfo,
}

// Classify maps an event name to its class, ignoring case.
func Classify(event string) Class {
	if c, ok := eventClasses[strings.ToLower(strings.TrimSpace(event))]; ok {
		return c
	}
	return ClassUnknown
}

// Event is an authenticated provider notification.
type Event struct {
	Type          string // lowercased provider event name
	Class         Class
	CorrelationID string
	Payload       []byte // JSON, stored in the audit trail
}

// ParseMoneyMotion extracts the event from a verified webhook body. The
// provider is inconsistent about field names, so several are tried in order.
func ParseMoneyMotion(raw []byte) (Event, error) {
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	eventType := firstString(body, "event", "status", "type")
	if eventType == "" {
		return Event{}, fmt.Errorf("%w: missing event type", ErrMalformedPayload)
	}

	correlationID := firstString(body, "moneymotionId", "transaction_id", "id")
	if correlationID == "" {
		if meta, ok := body["metadata"].(map[string]interface{}); ok {
			correlationID = firstString(meta, "moneymotionId")
		}
	}
	if correlationID == "" {
		return Event{}, fmt.Errorf("%w: missing transaction id", ErrMalformedPayload)
	}

	eventType = strings.ToLower(strings.TrimSpace(eventType))
	return Event{
		Type:          eventType,
		Class:         Classify(eventType),
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
