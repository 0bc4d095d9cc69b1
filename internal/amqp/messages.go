package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"smartfinance/internal/core"
)

// FeedbackMessage carries one feedback answer to the delivery worker.
// OutboxID is zero when the API runs without a durable outbox.
type FeedbackMessage struct {
	OutboxID  int64              `json:"outbox_id,omitempty"`
	Entry     core.FeedbackEntry `json:"entry"`
	Timestamp time.Time          `json:"timestamp"`
}

// ExportMessage carries a committed transaction to the sheets exporter.
type ExportMessage struct {
	SessionID string                 `json:"session_id"`
	Record    core.TransactionRecord `json:"record"`
	Timestamp time.Time              `json:"timestamp"`
}

var errEmptyRecord = errors.New("export message without record id")

func NewFeedbackMessage(outboxID int64, e core.FeedbackEntry) *FeedbackMessage {
	return &FeedbackMessage{OutboxID: outboxID, Entry: e, Timestamp: time.Now()}
}

func (m *FeedbackMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func FeedbackMessageFromJSON(data []byte) (*FeedbackMessage, error) {
	var msg FeedbackMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func NewExportMessage(sessionID string, r core.TransactionRecord) *ExportMessage {
	return &ExportMessage{SessionID: sessionID, Record: r, Timestamp: time.Now()}
}

func (m *ExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExportMessageFromJSON(data []byte) (*ExportMessage, error) {
	var msg ExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Record.ID == "" {
		return nil, errEmptyRecord
	}
	return &msg, nil
}
