package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lumenlabs/lumen/internal/session"
)

// ChannelSender delivers outbound messages over an external channel. The
// concrete channel adapters live outside this package.
type ChannelSender interface {
	// Channels lists the sender's known channel names
	Channels() []string

	// Send delivers text to an address on a channel
	Send(ctx context.Context, channel, to, text string) error
}

// MessageTool sends messages over external channels. When the model omits a
// recipient, the conversation's delivery context decides where "the current
// chat" is.
type MessageTool struct {
	sessions *session.Store
	sender   ChannelSender
}

// NewMessageTool wires the session store and a channel sender
func NewMessageTool(sessions *session.Store, sender ChannelSender) *MessageTool {
	return &MessageTool{sessions: sessions, sender: sender}
}

func (t *MessageTool) Name() string { return "message" }

func (t *MessageTool) Description() string {
	return "Send a message over an external channel. Omit \"to\" to reply to the current chat."
}

func (t *MessageTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"channel": {"type": "string", "description": "Channel name; defaults to the conversation's channel"},
			"to": {"type": "string", "description": "Recipient address; omit to reply to the current chat"},
			"text": {"type": "string", "description": "Message text"}
		},
		"required": ["text"]
	}`)
}

func (t *MessageTool) Execute(ctx context.Context, input json.RawMessage, ec *ExecContext) (*ToolResult, error) {
	var args struct {
		Channel string `json:"channel"`
		To      string `json:"to"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return Errorf("invalid message input: %v", err), nil
	}
	if args.Text == "" {
		return Errorf("message requires text"), nil
	}
	if t.sender == nil {
		return Errorf("no message channels are configured"), nil
	}

	channel := args.Channel
	if channel == "" && ec != nil {
		channel = ec.Channel
	}
	if channel == "" {
		return Errorf("message requires a channel; none is associated with this conversation"), nil
	}

	to := args.To
	if to == "" {
		if ec == nil || ec.SessionID == "" {
			return Errorf("recipient required: no conversation to resolve the current chat from"), nil
		}
		resolved, err := t.sessions.ResolveDeliveryTarget(ec.SessionID, channel)
		if errors.Is(err, session.ErrRecipientRequired) {
			return Errorf("recipient required: this conversation has no delivery context for channel %q", channel), nil
		}
		if err != nil {
			return Errorf("resolve recipient: %v", err), nil
		}
		to = resolved
	}

	if err := t.sender.Send(ctx, channel, to, args.Text); err != nil {
		return Errorf("send via %s: %v", channel, err), nil
	}
	return &ToolResult{Content: fmt.Sprintf("sent to %s on %s", to, channel)}, nil
}
