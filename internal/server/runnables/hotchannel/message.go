package hotchannel

import (
	"encoding/json"
	"time"

	"github.com/atlanticdynamic/lynxserve/internal/build"
)

// Message is the JSON form of a build.Event sent to subscribers.
type Message struct {
	Type     build.Kind        `json:"type"`
	ID       string            `json:"id"`
	Hash     string            `json:"hash,omitempty"`
	Time     time.Time         `json:"time"`
	Duration int64             `json:"durationMs,omitempty"`
	Assets   []build.AssetInfo `json:"assets,omitempty"`
	Warnings []build.Message   `json:"warnings,omitempty"`
	Errors   []build.Message   `json:"errors,omitempty"`
}

// NewMessage converts ev. A fatal event carries its cause as the only error.
func NewMessage(ev build.Event) Message {
	msg := Message{
		Type: ev.Kind,
		ID:   ev.ID.String(),
		Time: ev.Time.UTC(),
	}
	if s := ev.Stats; s != nil {
		msg.Hash = s.Hash
		msg.Duration = s.Duration.Milliseconds()
		msg.Assets = s.Assets
		msg.Warnings = s.Warnings
		msg.Errors = s.Errors
	}
	if ev.Cause != nil {
		msg.Errors = append(msg.Errors, build.Message{Text: ev.Cause.Error()})
	}
	return msg
}

func encode(ev build.Event) ([]byte, error) {
	return json.Marshal(NewMessage(ev))
}
