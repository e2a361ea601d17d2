// Package types provides shared type definitions used across codeassist packages.
// This package exists to break import cycles between context, perception, tools and session.
// Types in this package should be foundational data structures with no complex dependencies.
package types

import "strings"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// ContentBlock is one typed element of a transport message.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// TextBlock wraps plain text in a "text" content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// WireMessage is a history entry in the shape the model transport consumes.
type WireMessage struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Text joins the text blocks of the message.
func (m WireMessage) Text() string {
	var sb strings.Builder
	for _, b := range m.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}
