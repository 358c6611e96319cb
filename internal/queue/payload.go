package queue

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// Message headers.
const (
	HeaderCorrelationID    = "correlation-id"
	HeaderNotificationType = "notification-type"
	HeaderTemplateID       = "template-id"
	HeaderAttempt          = "attempt"
)

// Metadata describes where a notification came from.
type Metadata struct {
	RoutineID   int64             `json:"routineId"`
	RoutineName string            `json:"routineName"`
	Type        string            `json:"type"`
	Recipient   string            `json:"recipient"`
	Variables   map[string]string `json:"variables,omitempty"`
	LogID       int64             `json:"logId"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Payload is the JSON document written to the notification topic.
type Payload struct {
	ID         string   `json:"id"`
	UserID     string   `json:"userId,omitempty"`
	Recipient  string   `json:"recipient"`
	Type       string   `json:"type"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	TemplateID int64    `json:"templateId"`
	Metadata   Metadata `json:"metadata"`
	Timestamp  int64    `json:"timestamp"` // unix millis
}

// Key is the partition key: the user id when known, else the payload id.
func (p Payload) Key() string {
	if p.UserID != "" {
		return p.UserID
	}
	return p.ID
}

// KafkaMessage encodes p as a Kafka message.
func (p Payload) KafkaMessage(correlationID string) (kafka.Message, error) {
	value, err := json.Marshal(p)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode payload %s: %w", p.ID, err)
	}
	return kafka.Message{
		Key:   []byte(p.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderCorrelationID, Value: []byte(correlationID)},
			{Key: HeaderNotificationType, Value: []byte(p.Type)},
			{Key: HeaderTemplateID, Value: []byte(strconv.FormatInt(p.TemplateID, 10))},
		},
	}, nil
}

// DecodePayload parses a message value.
func DecodePayload(b []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func setHeader(msg *kafka.Message, key, value string) {
	for i, h := range msg.Headers {
		if h.Key == key {
			msg.Headers[i].Value = []byte(value)
			return
		}
	}
	msg.Headers = append(msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}
