package amqp

import (
	"encoding/json"
	"time"
)

// RunRequestMessage asks a worker to run the newsletter pipeline for one
// user. It carries only flags; the worker loads everything else itself.
type RunRequestMessage struct {
	UserID    string    `json:"userId"`
	SkipAI    bool      `json:"skipAi,omitempty"`
	SkipEmail bool      `json:"skipEmail,omitempty"`
	Force     bool      `json:"force,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRunRequestMessage(userID string, skipAI, skipEmail, force bool) *RunRequestMessage {
	return &RunRequestMessage{
		UserID:    userID,
		SkipAI:    skipAI,
		SkipEmail: skipEmail,
		Force:     force,
		Timestamp: time.Now(),
	}
}

func (m *RunRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RunRequestMessageFromJSON(data []byte) (*RunRequestMessage, error) {
	var msg RunRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
