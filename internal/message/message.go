// Package message defines the canonical chat message types used across the
// codebase. All packages import from here to avoid circular dependencies.
package message

import (
	"fmt"
	"strings"
)

// Role represents the role of a message participant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
	RoleSystem    Role = "system"
)

// PartType tags one entry of a multi-part message body.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// ImageData represents inline image data for multimodal messages.
type ImageData struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"` // base64
	FileName  string `json:"file_name,omitempty"`
	Size      int    `json:"size,omitempty"`
}

// Part is one typed block of a multi-part message body.
type Part struct {
	Type  PartType   `json:"type"`
	Text  string     `json:"text,omitempty"`
	Image *ImageData `json:"image,omitempty"`
}

// Message represents a chat message within one session. The body is a tagged
// variant: either Content (plain text) or Parts (ordered typed blocks).
// Parts takes precedence when non-empty.
type Message struct {
	ID      int    `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
	Parts   []Part `json:"parts,omitempty"`
}

// UserText creates a plain-text user message.
func UserText(id int, text string) Message {
	return Message{ID: id, Role: RoleUser, Content: text}
}

// UserParts creates a multi-part user message.
func UserParts(id int, parts []Part) Message {
	return Message{ID: id, Role: RoleUser, Parts: parts}
}

// TextPart creates a text block.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ImagePart creates an inline-image block.
func ImagePart(img ImageData) Part {
	return Part{Type: PartImage, Image: &img}
}

// PlainText flattens the message body to a single string. Image blocks and
// unrecognized block tags are stringified so every message has a readable
// text form.
func (m Message) PlainText() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		switch p.Type {
		case PartText:
			sb.WriteString(p.Text)
		case PartImage:
			if p.Image != nil {
				fmt.Fprintf(&sb, "[image: %s]", p.Image.FileName)
			}
		default:
			fmt.Fprintf(&sb, "%v", p)
		}
	}
	return sb.String()
}

// NextID returns the id to assign to the next message: one greater than the
// maximum id present, or 1 for an empty history.
func NextID(msgs []Message) int {
	next := 1
	for _, m := range msgs {
		if m.ID >= next {
			next = m.ID + 1
		}
	}
	return next
}

// ChunkType represents the type of a stream chunk.
type ChunkType string

const (
	ChunkTypeText  ChunkType = "text"
	ChunkTypeDone  ChunkType = "done"
	ChunkTypeError ChunkType = "error"
)

// StreamChunk represents a chunk in a streaming response. A stream is a
// finite sequence of text chunks terminated by exactly one done or error
// chunk; consumers can always range until the channel closes.
type StreamChunk struct {
	Type ChunkType
	Text string
	Err  error
}
