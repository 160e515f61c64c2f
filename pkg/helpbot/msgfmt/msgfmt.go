// Copyright 2024-2026 Aiku AI

// Package msgfmt renders outgoing bot text into Matrix message content in
// one of the three supported encodings: plain text, HTML, or Markdown.
package msgfmt

import (
	"fmt"
	"strings"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/format"
)

// Format selects the content encoding for outgoing messages.
type Format string

const (
	FormatPlain    Format = "plain"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// ParseFormat parses a format name from configuration. Accepted values are
// "plain", "html", "markdown" and the short form "md", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "plain":
		return FormatPlain, nil
	case "html":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("invalid message format %q (valid options: plain, html, markdown)", s)
	}
}

func (f Format) String() string {
	return string(f)
}

// Render converts text into Matrix message content in the given format.
// Unknown formats fall back to plain text.
func Render(text string, f Format) *event.MessageEventContent {
	switch f {
	case FormatHTML:
		return &event.MessageEventContent{
			MsgType:       event.MsgText,
			Body:          text,
			Format:        event.FormatHTML,
			FormattedBody: text,
		}
	case FormatMarkdown:
		content := format.RenderMarkdown(text, true, false)
		return &content
	default:
		return &event.MessageEventContent{
			MsgType: event.MsgText,
			Body:    text,
		}
	}
}
