// Package slackbridge connects the message pipeline to Slack over
// Socket Mode.
package slackbridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/kestrelhq/kestrel/internal/bot"
)

// Handler consumes the events the bridge produces.
type Handler interface {
	HandleMessage(ctx context.Context, ev bot.MessageEvent, replier bot.Replier, reactor bot.Reactor) error
	HandleCommand(ctx context.Context, ev bot.CommandEvent, replier bot.Replier) error
}

// Bridge owns the Slack clients and the Socket Mode event loop.
type Bridge struct {
	api      *slack.Client
	socket   *socketmode.Client
	botToken string
	logger   *slog.Logger
}

// New builds the Slack clients. botToken is the xoxb- token for Web API
// calls, appToken the xapp- token for Socket Mode.
func New(botToken, appToken string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	api := slack.New(
		botToken,
		slack.OptionAppLevelToken(appToken),
	)
	return &Bridge{
		api:      api,
		socket:   socketmode.New(api),
		botToken: botToken,
		logger:   logger.With("component", "slack"),
	}
}

// Authenticate verifies the bot token and returns the bot's own user ID.
func (b *Bridge) Authenticate(ctx context.Context) (string, error) {
	resp, err := b.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("slack auth test: %w", err)
	}
	b.logger.Info("authenticated", "user", resp.User, "user_id", resp.UserID, "team", resp.Team)
	return resp.UserID, nil
}

// Run opens the Socket Mode connection and dispatches events to the
// handler until ctx is cancelled or the connection fails. Each event is
// acknowledged before handling so Slack does not redeliver while a
// provider call is in flight.
func (b *Bridge) Run(ctx context.Context, handler Handler) error {
	runErr := make(chan error, 1)
	go func() {
		runErr <- b.socket.RunContext(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-runErr:
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("socket mode: %w", err)
			}
			return ctx.Err()
		case event, ok := <-b.socket.Events:
			if !ok {
				return ctx.Err()
			}
			b.dispatch(ctx, event, handler)
		}
	}
}

func (b *Bridge) dispatch(ctx context.Context, event socketmode.Event, handler Handler) {
	switch event.Type {
	case socketmode.EventTypeConnecting:
		b.logger.Info("connecting to socket mode")

	case socketmode.EventTypeConnectionError:
		b.logger.Error("socket mode connection error", "data", event.Data)

	case socketmode.EventTypeConnected:
		b.logger.Info("connected to socket mode")

	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := event.Data.(slackevents.EventsAPIEvent)
		if !ok {
			b.logger.Warn("unexpected events api payload", "data", event.Data)
			b.ack(event)
			return
		}
		b.ack(event)
		if apiEvent.Type != slackevents.CallbackEvent {
			return
		}
		if msg, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent); ok {
			go b.handleMessage(ctx, msg, handler)
		}

	case socketmode.EventTypeSlashCommand:
		cmd, ok := event.Data.(slack.SlashCommand)
		if !ok {
			b.logger.Warn("unexpected slash command payload", "data", event.Data)
			b.ack(event)
			return
		}
		b.ack(event)
		go b.handleCommand(ctx, cmd, handler)

	case socketmode.EventTypeInteractive:
		b.ack(event)
	}
}

func (b *Bridge) ack(event socketmode.Event) {
	if event.Request != nil {
		b.socket.Ack(*event.Request)
	}
}

func (b *Bridge) handleMessage(ctx context.Context, msg *slackevents.MessageEvent, handler Handler) {
	ev := b.convertMessage(msg)
	replier := messageReplier{api: b.api, channelID: ev.ChannelID}
	if err := handler.HandleMessage(ctx, ev, replier, reactor{api: b.api}); err != nil {
		b.logger.Error("handling message failed", "channel", ev.ChannelID, "error", err)
	}
}

func (b *Bridge) handleCommand(ctx context.Context, cmd slack.SlashCommand, handler Handler) {
	ev := bot.CommandEvent{
		Command:   cmd.Command,
		Text:      cmd.Text,
		UserID:    cmd.UserID,
		ChannelID: cmd.ChannelID,
	}
	replier := messageReplier{api: b.api, channelID: cmd.ChannelID}
	if err := handler.HandleCommand(ctx, ev, replier); err != nil {
		b.logger.Error("handling command failed", "command", cmd.Command, "error", err)
	}
}

// convertMessage maps a Slack event onto the pipeline's message shape.
// Attached files become lazy fetchers so nothing downloads unless a rule
// actually needs the bytes.
func (b *Bridge) convertMessage(msg *slackevents.MessageEvent) bot.MessageEvent {
	ev := bot.MessageEvent{
		ChannelID: msg.Channel,
		UserID:    msg.User,
		Text:      msg.Text,
		Timestamp: msg.TimeStamp,
		IsBot:     msg.BotID != "",
		Subtype:   msg.SubType,
	}

	var files []slack.File
	if msg.Message != nil {
		files = msg.Message.Files
	}
	for _, f := range files {
		url := f.URLPrivateDownload
		if url == "" {
			url = f.URLPrivate
		}
		if url == "" {
			continue
		}
		ev.Files = append(ev.Files, bot.File{
			Name:     f.Name,
			MimeType: f.Mimetype,
			Fetch:    b.fetcher(url),
		})
	}
	return ev
}

// messageReplier posts plain-text replies to one channel, optionally in
// a thread.
type messageReplier struct {
	api       *slack.Client
	channelID string
}

func (r messageReplier) Reply(ctx context.Context, text, threadTS string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	if _, _, err := r.api.PostMessageContext(ctx, r.channelID, opts...); err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

type reactor struct {
	api *slack.Client
}

func (r reactor) AddReaction(ctx context.Context, channelID, timestamp, emoji string) error {
	return r.api.AddReactionContext(ctx, emoji, slack.NewRefToMessage(channelID, timestamp))
}
