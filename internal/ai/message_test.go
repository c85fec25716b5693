package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	prompt string
	text   string
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.text, f.err
}

func TestBuildPromptChannelInstructions(t *testing.T) {
	prompt, err := BuildPrompt(MessageRequest{
		UserType:     "Merchant",
		MessageType:  "Welcome",
		Channel:      ChannelSMS,
		CustomPrompt: "Mention free delivery",
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "Channel: SMS")
	assert.Contains(t, prompt, "Recipient Type: Merchant")
	assert.Contains(t, prompt, "Message Goal: Welcome")
	assert.Contains(t, prompt, "Additional Instructions: Mention free delivery")
	assert.Contains(t, prompt, "under 160 characters")
	assert.NotContains(t, prompt, "Dear [Name]")
}

func TestBuildPromptOmitsEmptyCustomPrompt(t *testing.T) {
	prompt, err := BuildPrompt(MessageRequest{UserType: "Customer", MessageType: "Promo", Channel: ChannelEmail})
	require.NoError(t, err)
	assert.NotContains(t, prompt, "Additional Instructions")
	assert.Contains(t, prompt, "Best regards,\nThe Qawafel Team")
}

func TestBuildPromptUnknownChannel(t *testing.T) {
	_, err := BuildPrompt(MessageRequest{Channel: "Fax"})
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestGenerate(t *testing.T) {
	req := MessageRequest{UserType: "Customer", MessageType: "Reminder", Channel: ChannelWhatsApp}

	t.Run("not configured", func(t *testing.T) {
		text, err := NewMessageService(nil).Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, NotConfiguredMessage, text)
	})

	t.Run("generator failure", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("quota")}
		text, err := NewMessageService(gen).Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, FailedMessage, text)
	})

	t.Run("success", func(t *testing.T) {
		gen := &fakeGenerator{text: "Hi there 👋"}
		text, err := NewMessageService(gen).Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "Hi there 👋", text)
		assert.Contains(t, gen.prompt, "Emojis are allowed")
	})
}
