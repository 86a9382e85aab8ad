// Package sse reassembles chat-completion token deltas from a server-sent-event stream.
//
// Bytes arrive in arbitrary chunks. A Decoder turns them into text without
// splitting multi-byte runes, and a Parser extracts complete "data: " lines,
// pushing back a line whose JSON payload does not parse yet.
package sse

import "encoding/json"

const (
	// DataPrefix introduces a payload line.
	DataPrefix = "data: "
	// DoneSentinel is the payload that terminates the stream.
	DoneSentinel = "[DONE]"
)

// Frame is one token-delta payload. Every field is optional.
type Frame struct {
	ID      string          `json:"id,omitempty"`
	Model   string          `json:"model,omitempty"`
	Choices []Choice        `json:"choices,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// Choice is one completion alternative inside a frame.
type Choice struct {
	Delta        *Delta  `json:"delta,omitempty"`
	FinishReason *string `json:"finish_reason,omitempty"`
}

// Delta carries the incremental message fields.
type Delta struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Content returns the first choice's delta text, or "" when absent.
func (f *Frame) Content() string {
	if len(f.Choices) == 0 {
		return ""
	}
	d := f.Choices[0].Delta
	if d == nil || d.Content == nil {
		return ""
	}
	return *d.Content
}

// FinishReason returns the first choice's finish reason, or "" when absent.
func (f *Frame) FinishReason() string {
	if len(f.Choices) == 0 || f.Choices[0].FinishReason == nil {
		return ""
	}
	return *f.Choices[0].FinishReason
}
