package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kestrelhq/kestrel/internal/config"
	"github.com/kestrelhq/kestrel/internal/guard"
	"github.com/kestrelhq/kestrel/internal/llm"
	"github.com/kestrelhq/kestrel/internal/observability"
	"github.com/kestrelhq/kestrel/internal/tools"
)

// User-facing replies. Validation rejections are specific; everything
// that went wrong on our side collapses into the generic failure.
const (
	replyGenericFailure = "Sorry, I encountered an error processing your request."
	replyNotConfigured  = "Sorry, this command is not configured."
	replyRejected       = "Sorry, your message could not be processed."

	// placeholder texts for requests without usable content
	promptAnalyzeImage = "Please analyze this image."
	promptFallback     = "Hello"
)

// Message subtypes that never reach a provider: edits, deletions, and
// membership notices.
var suppressedSubtypes = map[string]bool{
	"message_changed": true,
	"message_deleted": true,
	"channel_join":    true,
	"channel_leave":   true,
}

// channelRuntime pairs a channel rule with its pre-built tools.
type channelRuntime struct {
	rule  *config.ChannelRule
	tools []tools.Tool
}

// commandRuntime pairs a command rule with its pre-built tools.
type commandRuntime struct {
	rule  *config.CommandRule
	tools []tools.Tool
}

// providerSource yields a provider client for a rule's configuration.
// *llm.Cache is the production implementation.
type providerSource interface {
	Get(cfg config.ProviderConfig, timeout time.Duration) (llm.Provider, error)
}

// Handler orchestrates one inbound item at a time. Shared state (the
// provider cache, tool seen-stores) is safe under concurrent handling by
// independent transport workers.
type Handler struct {
	settings  config.Settings
	channels  []channelRuntime
	commands  []commandRuntime
	providers providerSource
	gate      *guard.Gate
	metrics   *observability.Metrics
	logger    *slog.Logger
	botUserID string
}

// Options configures a Handler.
type Options struct {
	Config    *config.Config
	Providers *llm.Cache
	Metrics   *observability.Metrics
	Logger    *slog.Logger

	// BotUserID is the bot's own Slack user ID, used for self-message
	// suppression.
	BotUserID string
}

// New compiles the configuration into a Handler. Tool construction
// happens here so that invalid tool configuration fails at startup, not
// when a message arrives.
func New(opts Options) (*Handler, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	providers := opts.Providers
	if providers == nil {
		providers = llm.NewCache()
	}

	h := &Handler{
		settings:  cfg.Settings,
		providers: providers,
		metrics:   opts.Metrics,
		logger:    logger.With("component", "bot"),
		botUserID: opts.BotUserID,
	}

	if cfg.Settings.GuardEnabled {
		h.gate = guard.New(cfg.Settings.GuardThreshold)
	}

	for i := range cfg.Channels {
		rule := &cfg.Channels[i]
		if !rule.IsEnabled() {
			continue
		}
		built, err := tools.Build(rule.Tools)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", rule.ChannelID, err)
		}
		h.channels = append(h.channels, channelRuntime{rule: rule, tools: built})
	}
	for i := range cfg.Commands {
		rule := &cfg.Commands[i]
		if !rule.IsEnabled() {
			continue
		}
		built, err := tools.Build(rule.Tools)
		if err != nil {
			return nil, fmt.Errorf("command %s: %w", rule.Command, err)
		}
		h.commands = append(h.commands, commandRuntime{rule: rule, tools: built})
	}

	return h, nil
}

func (h *Handler) lookupChannel(channelID string) *channelRuntime {
	for i := range h.channels {
		if h.channels[i].rule.ChannelID == channelID {
			return &h.channels[i]
		}
	}
	return nil
}

func (h *Handler) lookupCommand(command string) *commandRuntime {
	if command != "" && !strings.HasPrefix(command, "/") {
		command = "/" + command
	}
	for i := range h.commands {
		if h.commands[i].rule.Command == command {
			return &h.commands[i]
		}
	}
	return nil
}

// HandleMessage processes one channel message to completion. Messages
// that fail a gate are dropped silently; only rule-matched, gate-passing
// messages produce a reply.
func (h *Handler) HandleMessage(ctx context.Context, ev MessageEvent, replier Replier, reactor Reactor) error {
	rt := h.lookupChannel(ev.ChannelID)
	if rt == nil {
		return nil
	}
	rule := rt.rule
	logger := h.logger.With("channel", rule.ChannelName)

	if h.shouldIgnore(ev) {
		return nil
	}

	if len(ev.Text) > h.settings.MaxMessageLength {
		logger.Warn("message too long", "length", len(ev.Text))
		h.countOutcome("message", "dropped")
		return nil
	}

	images := h.fetchImages(ctx, ev.Files, logger)
	if rule.RequireImage && len(images) == 0 {
		logger.Debug("no usable image attached, skipping")
		h.countOutcome("message", "dropped")
		return nil
	}

	if !MatchesKeywords(ev.Text, rule.Keywords, rule.CaseSensitive) {
		logger.Debug("no keyword match")
		h.countOutcome("message", "dropped")
		return nil
	}

	// The reaction signals pickup before the (potentially slow)
	// enrichment and provider round trips. Failure to react is logged
	// and ignored.
	if emoji := rule.Response.AddReaction; emoji != "" && reactor != nil {
		if err := reactor.AddReaction(ctx, ev.ChannelID, ev.Timestamp, emoji); err != nil {
			logger.Error("adding reaction failed", "emoji", emoji, "error", err)
		}
	}

	threadTS := ""
	if rule.Response.ReplyInThread() {
		threadTS = ev.Timestamp
	}

	if !h.scanInput(ev.Text, logger) {
		h.countOutcome("message", "rejected")
		return replier.Reply(ctx, replyRejected, threadTS)
	}

	systemPrompt := h.enrich(ctx, rule.SystemPrompt, rt.tools, toolContext(ev.Text, ev.UserID, ev.ChannelID), logger)

	message := buildUserMessage(ev.Text, images)
	text, err := h.generate(ctx, rule.LLM, systemPrompt, message)
	if err != nil {
		logger.Error("generating response failed", "provider", rule.LLM.Provider, "reason", llm.ReasonOf(err), "error", err)
		h.countOutcome("message", "failed")
		return replier.Reply(ctx, replyGenericFailure, threadTS)
	}

	h.countOutcome("message", "replied")
	return replier.Reply(ctx, FormatReply(text, SlackMessageLimit), threadTS)
}

// HandleCommand processes one slash command to completion. Commands
// always answer: validation problems get specific guidance, everything
// else gets either the generated text or the generic failure.
func (h *Handler) HandleCommand(ctx context.Context, ev CommandEvent, replier Replier) error {
	rt := h.lookupCommand(ev.Command)
	if rt == nil {
		h.logger.Warn("unconfigured command", "command", ev.Command)
		return replier.Reply(ctx, replyNotConfigured, "")
	}
	rule := rt.rule
	logger := h.logger.With("command", rule.Command)

	if strings.TrimSpace(ev.Text) == "" {
		usage := fmt.Sprintf("Please provide text after the command. Usage: `%s <your text>`", rule.Command)
		return replier.Reply(ctx, usage, "")
	}

	if len(ev.Text) > h.settings.MaxMessageLength {
		reply := fmt.Sprintf("Your message is too long (%d characters). Maximum is %d characters.",
			len(ev.Text), h.settings.MaxMessageLength)
		h.countOutcome("command", "dropped")
		return replier.Reply(ctx, reply, "")
	}

	if !h.scanInput(ev.Text, logger) {
		h.countOutcome("command", "rejected")
		return replier.Reply(ctx, replyRejected, "")
	}

	systemPrompt := h.enrich(ctx, rule.SystemPrompt, rt.tools, toolContext(ev.Text, ev.UserID, ev.ChannelID), logger)

	message := llm.UserMessage(llm.TextBlock(ev.Text))
	text, err := h.generate(ctx, rule.LLM, systemPrompt, message)
	if err != nil {
		logger.Error("generating response failed", "provider", rule.LLM.Provider, "reason", llm.ReasonOf(err), "error", err)
		h.countOutcome("command", "failed")
		return replier.Reply(ctx, replyGenericFailure, "")
	}

	logger.Info("command completed")
	h.countOutcome("command", "replied")
	return replier.Reply(ctx, FormatReply(text, SlackMessageLimit), "")
}

// shouldIgnore applies the message suppression filters: own messages,
// bot accounts, and noisy subtypes.
func (h *Handler) shouldIgnore(ev MessageEvent) bool {
	if h.settings.IgnoreBots() && ev.IsBot {
		return true
	}
	if h.settings.IgnoreOwn() && ev.UserID != "" && ev.UserID == h.botUserID {
		return true
	}
	return suppressedSubtypes[ev.Subtype]
}

// scanInput runs the safety gate when enabled. The raw text is scanned
// before any tool or provider sees it; on rejection nothing downstream
// runs.
func (h *Handler) scanInput(text string, logger *slog.Logger) bool {
	if h.gate == nil {
		return true
	}
	safe, score := h.gate.Scan(text)
	if !safe {
		logger.Warn("input rejected by safety gate", "score", score, "threshold", h.gate.Threshold())
		if h.metrics != nil {
			h.metrics.GuardRejections.Inc()
		}
	}
	return safe
}

// fetchImages downloads attached files that declare an image MIME type,
// keeping only those with retrievable, non-empty bytes.
func (h *Handler) fetchImages(ctx context.Context, files []File, logger *slog.Logger) []llm.ContentBlock {
	var images []llm.ContentBlock
	for _, file := range files {
		if !strings.HasPrefix(file.MimeType, "image/") || file.Fetch == nil {
			continue
		}
		data, err := file.Fetch(ctx)
		if err != nil {
			logger.Error("downloading file failed", "file", file.Name, "error", err)
			continue
		}
		if len(data) == 0 {
			continue
		}
		images = append(images, llm.ImageBlock(data, file.MimeType))
	}
	return images
}

// enrich runs the rule's tools in configured order and appends each
// result under a labeled heading. A failing tool is logged and skipped;
// enrichment already collected from other tools is kept.
func (h *Handler) enrich(ctx context.Context, systemPrompt string, ruleTools []tools.Tool, tc tools.Context, logger *slog.Logger) string {
	if len(ruleTools) == 0 {
		return systemPrompt
	}

	var sections []string
	for _, tool := range ruleTools {
		result, err := tool.Execute(ctx, tc)
		if err != nil {
			logger.Error("tool execution failed", "tool", tool.Name(), "error", err)
			h.countTool(tool.Name(), "error")
			continue
		}
		h.countTool(tool.Name(), "success")
		sections = append(sections, fmt.Sprintf("\n--- %s Data ---\n%s", tool.Name(), result))
	}
	if len(sections) == 0 {
		return systemPrompt
	}
	return systemPrompt + "\n\n" + strings.Join(sections, "\n")
}

// buildUserMessage assembles the provider message: image blocks in
// arrival order, then one text block. Requests are never sent with empty
// content.
func buildUserMessage(text string, images []llm.ContentBlock) llm.Message {
	blocks := make([]llm.ContentBlock, 0, len(images)+1)
	blocks = append(blocks, images...)

	switch {
	case text != "":
		blocks = append(blocks, llm.TextBlock(text))
	case len(images) > 0:
		blocks = append(blocks, llm.TextBlock(promptAnalyzeImage))
	default:
		blocks = append(blocks, llm.TextBlock(promptFallback))
	}
	return llm.Message{Role: llm.RoleUser, Content: blocks}
}

// generate dispatches one request to the rule's provider under the
// configured timeout. No retries: a failed call is a failed request.
func (h *Handler) generate(ctx context.Context, providerCfg config.ProviderConfig, systemPrompt string, message llm.Message) (string, error) {
	timeout := h.settings.ProviderTimeoutDuration()
	provider, err := h.providers.Get(providerCfg, timeout)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	text, err := provider.Generate(callCtx, &llm.Request{
		Messages:     []llm.Message{message},
		SystemPrompt: systemPrompt,
		MaxTokens:    providerCfg.MaxTokens,
		Temperature:  providerCfg.TemperatureValue(),
	})
	h.observeLLM(provider.Name(), providerCfg.Model, time.Since(start), err)
	return text, err
}

func (h *Handler) countOutcome(kind, outcome string) {
	if h.metrics != nil {
		h.metrics.MessagesProcessed.WithLabelValues(kind, outcome).Inc()
	}
}

func (h *Handler) countTool(name, status string) {
	if h.metrics != nil {
		h.metrics.ToolExecutions.WithLabelValues(name, status).Inc()
	}
}

func (h *Handler) observeLLM(provider, model string, elapsed time.Duration, err error) {
	if h.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	h.metrics.LLMRequests.WithLabelValues(provider, model, status).Inc()
	h.metrics.LLMRequestDuration.WithLabelValues(provider, model).Observe(elapsed.Seconds())
}

func toolContext(text, userID, channelID string) tools.Context {
	return tools.Context{
		UserInput: text,
		UserID:    userID,
		ChannelID: channelID,
		Timestamp: time.Now(),
	}
}
