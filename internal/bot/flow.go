package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/creceideas/muralla/internal/session"
)

// Step identifies where a guest is in the submission conversation.
type Step string

const (
	// StepAwaitingChoice means the guest sent a photo and we asked
	// whether they want to attach a dedication.
	StepAwaitingChoice Step = "awaiting_choice"

	// StepAwaitingCaption means the guest said yes and we are waiting for
	// the dedication text.
	StepAwaitingCaption Step = "awaiting_caption"
)

var (
	yesWords = []string{"si", "sí", "yes", "y", "s", "ok"}
	noWords  = []string{"no", "n", "nop"}
)

// Messenger sends a text reply back over the chat transport.
type Messenger interface {
	Send(ctx context.Context, chatID, text string) error
}

// Submitter relays a finished submission to the photo wall.
type Submitter interface {
	SubmitPhoto(ctx context.Context, sub PhotoSubmission) error
}

// PhotoSubmission is the payload relayed to the wall once a conversation
// completes. Photo is a base64-encoded image.
type PhotoSubmission struct {
	SenderName    string
	SenderContact string
	Caption       string
	Photo         string
}

// Message is one inbound chat message, normalized by the transport layer.
type Message struct {
	ChatID     string
	SenderName string
	Text       string

	// Photo is the base64-encoded image attached to the message, empty
	// when the message is text-only.
	Photo string
}

// pendingUpload is the per-conversation state between a photo arriving and
// the guest deciding on a dedication.
type pendingUpload struct {
	step  Step
	photo string
}

// Flow drives the dedication conversation: a guest sends a photo, chooses
// whether to attach a message, and the result is relayed to the wall.
// Conversation state lives in a TTL session store, so abandoned flows
// evaporate on their own.
type Flow struct {
	sessions  *session.Store[string, pendingUpload]
	messenger Messenger
	submitter Submitter
	logger    *slog.Logger
}

// NewFlow creates a Flow whose half-finished conversations expire after ttl.
func NewFlow(messenger Messenger, submitter Submitter, ttl time.Duration, logger *slog.Logger) *Flow {
	return &Flow{
		sessions:  session.New[string, pendingUpload](ttl),
		messenger: messenger,
		submitter: submitter,
		logger:    logger,
	}
}

// StartJanitor runs the session eviction loop until ctx is cancelled.
func (f *Flow) StartJanitor(ctx context.Context) {
	f.sessions.StartJanitor(ctx, time.Minute)
}

// HandleMessage advances the conversation for one inbound message.
func (f *Flow) HandleMessage(ctx context.Context, msg Message) error {
	text := strings.TrimSpace(msg.Text)

	if state, ok := f.sessions.Get(msg.ChatID); ok {
		switch state.step {
		case StepAwaitingChoice:
			return f.handleChoice(ctx, msg, state, text)
		case StepAwaitingCaption:
			return f.handleCaption(ctx, msg, state, text)
		}
	}

	if msg.Photo != "" {
		f.sessions.Set(msg.ChatID, pendingUpload{step: StepAwaitingChoice, photo: msg.Photo})
		return f.messenger.Send(ctx, msg.ChatID, "Got your photo! Do you want to add a dedication? (yes/no)")
	}

	switch strings.ToLower(text) {
	case "ping":
		return f.messenger.Send(ctx, msg.ChatID, "pong!")
	case "info":
		return f.messenger.Send(ctx, msg.ChatID, fmt.Sprintf("Hi %s! Send me a photo to put it on the wall.", msg.SenderName))
	}

	if strings.Contains(strings.ToLower(text), "hello") || strings.Contains(strings.ToLower(text), "hola") {
		return f.messenger.Send(ctx, msg.ChatID,
			fmt.Sprintf("Hi %s! I put photos on the event wall.\n1. Send a photo\n2. Tell me if you want a dedication\n3. Done!", msg.SenderName))
	}

	return nil
}

func (f *Flow) handleChoice(ctx context.Context, msg Message, state pendingUpload, text string) error {
	answer := strings.ToLower(text)

	switch {
	case lo.Contains(yesWords, answer):
		f.sessions.Set(msg.ChatID, pendingUpload{step: StepAwaitingCaption, photo: state.photo})
		return f.messenger.Send(ctx, msg.ChatID, "Great. What should the dedication say?")

	case lo.Contains(noWords, answer):
		return f.finish(ctx, msg, state.photo, "")

	default:
		return f.messenger.Send(ctx, msg.ChatID, "Please answer 'yes' to add a dedication or 'no' to send the photo as is.")
	}
}

func (f *Flow) handleCaption(ctx context.Context, msg Message, state pendingUpload, text string) error {
	if text == "" {
		return f.messenger.Send(ctx, msg.ChatID, "Please send a short dedication text.")
	}
	return f.finish(ctx, msg, state.photo, text)
}

func (f *Flow) finish(ctx context.Context, msg Message, photo, caption string) error {
	if err := f.messenger.Send(ctx, msg.ChatID, "Saving..."); err != nil {
		f.logger.Warn("failed to send progress reply", "chat", msg.ChatID, "error", err)
	}

	err := f.submitter.SubmitPhoto(ctx, PhotoSubmission{
		SenderName:    msg.SenderName,
		SenderContact: msg.ChatID,
		Caption:       caption,
		Photo:         photo,
	})

	f.sessions.Delete(msg.ChatID)

	if err != nil {
		f.logger.Error("failed to relay submission", "chat", msg.ChatID, "error", err)
		return f.messenger.Send(ctx, msg.ChatID, "Something went wrong saving your photo. Please try again.")
	}
	return f.messenger.Send(ctx, msg.ChatID, "Your photo is on the wall!")
}
