package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"qawafel-crm/pkg/logger"
)

// Channels a message can be drafted for
const (
	ChannelEmail    = "Email"
	ChannelSMS      = "SMS"
	ChannelPush     = "Push"
	ChannelWhatsApp = "WhatsApp"
)

// Replies returned instead of an error so the caller can show them verbatim
const (
	NotConfiguredMessage = "AI Service is not configured. Please ensure the API Key is set correctly by the administrator."
	FailedMessage        = "Failed to generate message. Please try again later."
)

// ErrUnknownChannel is returned for channels outside Email, SMS, Push and WhatsApp
var ErrUnknownChannel = errors.New("unknown channel")

// Generator produces text for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// MessageRequest describes the message to draft
type MessageRequest struct {
	UserType     string `json:"user_type"`
	MessageType  string `json:"message_type"`
	Channel      string `json:"channel"`
	CustomPrompt string `json:"custom_prompt"`
}

// ValidChannel reports whether channel is supported
func ValidChannel(channel string) bool {
	switch channel {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelWhatsApp:
		return true
	}
	return false
}

var channelInstructions = map[string]string{
	ChannelEmail:    "Start the message with a greeting like \"Dear [Name],\" and end with a professional closing like \"Best regards,\nThe Qawafel Team\". Keep the body to 2-3 short paragraphs. Do not include a subject line.",
	ChannelSMS:      "The message must be very short, under 160 characters. Do not use greetings or closings.",
	ChannelPush:     "The message must be a short, actionable notification. Do not use greetings or closings.",
	ChannelWhatsApp: "The message should be friendly and conversational, suitable for WhatsApp. Emojis are allowed. Do not use formal greetings or closings.",
}

// BuildPrompt renders the drafting prompt for a request
func BuildPrompt(req MessageRequest) (string, error) {
	instructions, ok := channelInstructions[req.Channel]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, req.Channel)
	}

	var b strings.Builder
	b.WriteString("You are a professional B2B communication assistant for \"Qawafel CRM\", a marketplace connecting vendors with retailers.\n")
	b.WriteString("Your task is to generate a concise, professional, and friendly message.\n\n")
	fmt.Fprintf(&b, "Channel: %s\n", req.Channel)
	fmt.Fprintf(&b, "Recipient Type: %s\n", req.UserType)
	fmt.Fprintf(&b, "Message Goal: %s\n", req.MessageType)
	if req.CustomPrompt != "" {
		fmt.Fprintf(&b, "Additional Instructions: %s\n", req.CustomPrompt)
	}
	b.WriteString("\nThe tone should be supportive and business-oriented.\n\n")
	b.WriteString(instructions)
	b.WriteString("\n")
	return b.String(), nil
}

// MessageService drafts customer communication. A nil generator means
// generation is not configured.
type MessageService struct {
	gen Generator
}

// NewMessageService creates a message service
func NewMessageService(gen Generator) *MessageService {
	return &MessageService{gen: gen}
}

// Generate drafts a message. Provider failures are logged and turned into
// a user-facing reply.
func (s *MessageService) Generate(ctx context.Context, req MessageRequest) (string, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", err
	}
	if s == nil || s.gen == nil {
		return NotConfiguredMessage, nil
	}

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to generate message",
			zap.String("channel", req.Channel),
			zap.Error(err))
		return FailedMessage, nil
	}
	return text, nil
}
