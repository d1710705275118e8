// Package bot implements the request orchestrator: it resolves the rule
// for an inbound Slack message or slash command, applies suppression,
// length, image, keyword, and safety gates, runs enrichment tools,
// dispatches to the configured LLM provider, and emits the reply.
package bot

import "context"

// File is an attachment on an inbound message. Bytes are fetched lazily
// so that suppressed messages never pay the download cost.
type File struct {
	Name     string
	MimeType string
	Fetch    func(ctx context.Context) ([]byte, error)
}

// MessageEvent is a channel message delivered by the transport.
type MessageEvent struct {
	ChannelID string
	UserID    string
	Text      string
	Timestamp string
	IsBot     bool
	Subtype   string
	Files     []File
}

// CommandEvent is a slash command invocation delivered by the transport.
type CommandEvent struct {
	Command   string
	Text      string
	UserID    string
	ChannelID string
}

// Replier sends a reply for the item being handled. A non-empty threadTS
// anchors the reply to that thread.
type Replier interface {
	Reply(ctx context.Context, text, threadTS string) error
}

// Reactor adds an emoji reaction to a message.
type Reactor interface {
	AddReaction(ctx context.Context, channelID, timestamp, emoji string) error
}
