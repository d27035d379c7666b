// Package telegram wraps the Bot API calls the relay needs: sending the
// release announcement, uploading assets (or resending them by file_id) and
// deleting old messages. Every call goes through a shared rate limiter and a
// bounded retry loop.
package telegram

import (
	"context"
	"errors"
	"io"
	"time"

	"release-relay/internal/models"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	textTimeout   = 10 * time.Second
	uploadTimeout = 180 * time.Second
)

// ErrMessageGone signals that a delete targeted a message Telegram no longer
// knows about. The sweeper treats it as success.
var ErrMessageGone = errors.New("message already gone")

// BotAPI is the slice of gotgbot.Bot the client uses, split out so tests can
// inject a fake transport.
type BotAPI interface {
	SendMessage(chatId int64, text string, opts *gotgbot.SendMessageOpts) (*gotgbot.Message, error)
	SendDocument(chatId int64, document gotgbot.InputFileOrString, opts *gotgbot.SendDocumentOpts) (*gotgbot.Message, error)
	DeleteMessage(chatId int64, messageId int64, opts *gotgbot.DeleteMessageOpts) (bool, error)
}

type Client struct {
	api     BotAPI
	policy  RetryPolicy
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewClient(api BotAPI, policy RetryPolicy, messageRate float64, log zerolog.Logger) *Client {
	if messageRate <= 0 {
		messageRate = 1
	}
	return &Client{
		api:     api,
		policy:  policy,
		limiter: rate.NewLimiter(rate.Limit(messageRate), int(messageRate)+1),
		log:     log,
	}
}

// SendText sends a Markdown message to the target and returns the resulting
// message id.
func (c *Client) SendText(ctx context.Context, to models.Target, text string) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	opts := &gotgbot.SendMessageOpts{
		ParseMode:       "Markdown",
		MessageThreadId: to.ThreadID,
		LinkPreviewOptions: &gotgbot.LinkPreviewOptions{
			IsDisabled: true,
		},
		RequestOpts: &gotgbot.RequestOpts{Timeout: textTimeout},
	}
	msg, err := executeWithRetry(ctx, c.log, c.policy, "sendMessage", func() (*gotgbot.Message, error) {
		return c.api.SendMessage(to.ChatID, text, opts)
	})
	if err != nil {
		return 0, err
	}
	return msg.MessageId, nil
}

// UploadDocument uploads a file to the target and returns the reusable
// file_id plus the resulting message id. open is invoked once per attempt so
// a retry streams the payload from scratch instead of reusing a consumed
// reader.
func (c *Client) UploadDocument(ctx context.Context, to models.Target, caption, filename string, open func(context.Context) (io.ReadCloser, error)) (string, int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", 0, err
	}
	opts := &gotgbot.SendDocumentOpts{
		Caption:         caption,
		ParseMode:       "Markdown",
		MessageThreadId: to.ThreadID,
		RequestOpts:     &gotgbot.RequestOpts{Timeout: uploadTimeout},
	}
	msg, err := executeWithRetry(ctx, c.log, c.policy, "sendDocument", func() (*gotgbot.Message, error) {
		body, err := open(ctx)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return c.api.SendDocument(to.ChatID, gotgbot.InputFileByReader(filename, body), opts)
	})
	if err != nil {
		return "", 0, err
	}
	if msg.Document == nil {
		return "", 0, errors.New("sendDocument: response carries no document")
	}
	return msg.Document.FileId, msg.MessageId, nil
}

// SendDocumentByID resends an already-uploaded file to the target without
// re-uploading the content.
func (c *Client) SendDocumentByID(ctx context.Context, to models.Target, caption, fileID string) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	opts := &gotgbot.SendDocumentOpts{
		Caption:         caption,
		ParseMode:       "Markdown",
		MessageThreadId: to.ThreadID,
		RequestOpts:     &gotgbot.RequestOpts{Timeout: textTimeout},
	}
	msg, err := executeWithRetry(ctx, c.log, c.policy, "sendDocumentById", func() (*gotgbot.Message, error) {
		return c.api.SendDocument(to.ChatID, gotgbot.InputFileByID(fileID), opts)
	})
	if err != nil {
		return 0, err
	}
	return msg.MessageId, nil
}

// DeleteMessage removes a previously sent message. A Telegram 400 means the
// message is already gone (deleted by hand, chat purged, too old) and is
// reported as ErrMessageGone.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	opts := &gotgbot.DeleteMessageOpts{
		RequestOpts: &gotgbot.RequestOpts{Timeout: textTimeout},
	}
	_, err := executeWithRetry(ctx, c.log, c.policy, "deleteMessage", func() (bool, error) {
		return c.api.DeleteMessage(chatID, messageID, opts)
	})
	if err != nil {
		var tgErr *gotgbot.TelegramError
		if errors.As(err, &tgErr) && tgErr.Code == 400 {
			return ErrMessageGone
		}
		return err
	}
	return nil
}
