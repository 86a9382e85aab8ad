// Package domain contains core domain types for the aptitude tutor.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single transcript entry.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Image is an encoded image payload, normally a data URL.
	Image string `json:"image,omitempty"`
	// Greeting marks the client-side welcome placeholder.
	Greeting bool `json:"greeting,omitempty"`
	// Error marks a synthetic error bubble.
	Error bool `json:"error,omitempty"`
}

// HasImage reports whether the message carries an image.
func (m Message) HasImage() bool {
	return m.Image != ""
}

// ContentPart is one element of a multi-part message body.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// MarshalJSON always writes the text field of a text part, even when empty.
func (p ContentPart) MarshalJSON() ([]byte, error) {
	if p.Type == "text" {
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{Type: p.Type, Text: p.Text})
	}
	type part ContentPart
	return json.Marshal(part(p))
}

// ImageURL wraps an image reference inside a content part.
type ImageURL struct {
	URL string `json:"url"`
}

// MessageContent is either plain text or a list of parts on the wire.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// MarshalJSON encodes the content as a string unless parts are present.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either a JSON string or an array of parts.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = MessageContent{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode text content: %w", err)
		}
		*c = MessageContent{Text: s}
	case '[':
		var parts []ContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("decode content parts: %w", err)
		}
		*c = MessageContent{Parts: parts}
	default:
		return fmt.Errorf("unsupported content shape %q", data[0])
	}
	return nil
}

// WireMessage is a message as exchanged with the proxy and the gateway.
type WireMessage struct {
	Role    Role           `json:"role"`
	Content MessageContent `json:"content"`
}

// ToWire converts a transcript message into its outbound representation.
// Image-bearing messages become a text part, possibly empty, followed by an
// image part.
func (m Message) ToWire() WireMessage {
	if !m.HasImage() {
		return WireMessage{Role: m.Role, Content: MessageContent{Text: m.Content}}
	}
	return WireMessage{Role: m.Role, Content: MessageContent{Parts: []ContentPart{
		{Type: "text", Text: m.Content},
		{Type: "image_url", ImageURL: &ImageURL{URL: m.Image}},
	}}}
}

// ProxyRequest is the JSON body the client posts to the chat proxy.
type ProxyRequest struct {
	Messages []WireMessage `json:"messages"`
	Mode     LearningMode  `json:"mode"`
	Topic    string        `json:"topic,omitempty"`
}

// ErrorPayload is the JSON error body returned by the proxy.
type ErrorPayload struct {
	Error string `json:"error"`
}
