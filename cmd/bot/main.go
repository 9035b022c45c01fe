// Command bot runs the chat-side intake: guests message the bot a photo,
// optionally add a dedication, and the bot relays the result to the photo
// wall server. Discord is only the transport; the conversation logic lives
// in internal/bot.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/creceideas/muralla/internal/bot"
	"github.com/creceideas/muralla/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadBot()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))

	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flow := bot.NewFlow(&discordMessenger{session: dg}, bot.NewAPIClient(cfg.APIURL), cfg.SessionTTL, logger)
	go flow.StartJanitor(ctx)

	downloader := &attachmentDownloader{httpc: &http.Client{Timeout: 30 * time.Second}}

	dg.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}

		msg := bot.Message{
			ChatID:     m.ChannelID,
			SenderName: displayName(m.Author),
			Text:       m.Content,
		}

		if att := firstImageAttachment(m.Attachments); att != nil {
			photo, err := downloader.fetchBase64(ctx, att.URL)
			if err != nil {
				logger.Error("failed to download attachment", "url", att.URL, "error", err)
				return
			}
			msg.Photo = photo
		}

		if err := flow.HandleMessage(ctx, msg); err != nil {
			logger.Error("failed to handle message", "chat", m.ChannelID, "error", err)
		}
	})

	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	if err := dg.Open(); err != nil {
		return fmt.Errorf("open discord connection: %w", err)
	}
	defer dg.Close()

	logger.Info("bot running", "api", cfg.APIURL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	return nil
}

type discordMessenger struct {
	session *discordgo.Session
}

func (m *discordMessenger) Send(_ context.Context, chatID, text string) error {
	_, err := m.session.ChannelMessageSend(chatID, text)
	return err
}

type attachmentDownloader struct {
	httpc *http.Client
}

func (d *attachmentDownloader) fetchBase64(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := d.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func firstImageAttachment(attachments []*discordgo.MessageAttachment) *discordgo.MessageAttachment {
	for _, att := range attachments {
		if strings.HasPrefix(att.ContentType, "image/") {
			return att
		}
	}
	return nil
}

func displayName(user *discordgo.User) string {
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
