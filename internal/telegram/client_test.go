package telegram

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"release-relay/internal/models"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/rs/zerolog"
)

// fakeBot scripts one error per call, in order; once the script is used up
// every call succeeds.
type fakeBot struct {
	script []error

	sendMessageCalls  int
	sendDocumentCalls int
	deleteCalls       int
}

func (f *fakeBot) next() error {
	if len(f.script) == 0 {
		return nil
	}
	err := f.script[0]
	f.script = f.script[1:]
	return err
}

func (f *fakeBot) SendMessage(chatId int64, text string, opts *gotgbot.SendMessageOpts) (*gotgbot.Message, error) {
	f.sendMessageCalls++
	if err := f.next(); err != nil {
		return nil, err
	}
	return &gotgbot.Message{MessageId: 101}, nil
}

func (f *fakeBot) SendDocument(chatId int64, document gotgbot.InputFileOrString, opts *gotgbot.SendDocumentOpts) (*gotgbot.Message, error) {
	f.sendDocumentCalls++
	if err := f.next(); err != nil {
		return nil, err
	}
	return &gotgbot.Message{MessageId: 202, Document: &gotgbot.Document{FileId: "file-abc"}}, nil
}

func (f *fakeBot) DeleteMessage(chatId int64, messageId int64, opts *gotgbot.DeleteMessageOpts) (bool, error) {
	f.deleteCalls++
	if err := f.next(); err != nil {
		return false, err
	}
	return true, nil
}

func newTestClient(api BotAPI, attempts int) *Client {
	return NewClient(api, RetryPolicy{Attempts: attempts, Delay: time.Millisecond}, 1000, zerolog.Nop())
}

func TestSendText(t *testing.T) {
	fake := &fakeBot{}
	c := newTestClient(fake, 3)

	msgID, err := c.SendText(context.Background(), models.Target{ChatID: 7}, "hello")
	if err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if msgID != 101 {
		t.Errorf("message id = %d, want 101", msgID)
	}
	if fake.sendMessageCalls != 1 {
		t.Errorf("sendMessage calls = %d, want 1", fake.sendMessageCalls)
	}
}

func TestUploadDocumentReopensStreamPerAttempt(t *testing.T) {
	fake := &fakeBot{script: []error{errors.New("conn reset")}}
	c := newTestClient(fake, 3)

	opens := 0
	open := func(ctx context.Context) (io.ReadCloser, error) {
		opens++
		return io.NopCloser(strings.NewReader("payload")), nil
	}

	fileID, msgID, err := c.UploadDocument(context.Background(), models.Target{ChatID: 7}, "caption", "file.bin", open)
	if err != nil {
		t.Fatalf("UploadDocument() error = %v", err)
	}
	if fileID != "file-abc" || msgID != 202 {
		t.Errorf("got (%q, %d), want (file-abc, 202)", fileID, msgID)
	}
	if fake.sendDocumentCalls != 2 {
		t.Errorf("sendDocument calls = %d, want 2", fake.sendDocumentCalls)
	}
	if opens != 2 {
		t.Errorf("stream opened %d times, want once per attempt (2)", opens)
	}
}

func TestUploadDocumentOpenFailureIsRetried(t *testing.T) {
	fake := &fakeBot{}
	c := newTestClient(fake, 2)

	opens := 0
	open := func(ctx context.Context) (io.ReadCloser, error) {
		opens++
		if opens == 1 {
			return nil, errors.New("download: unexpected status 503")
		}
		return io.NopCloser(strings.NewReader("payload")), nil
	}

	if _, _, err := c.UploadDocument(context.Background(), models.Target{ChatID: 7}, "c", "f", open); err != nil {
		t.Fatalf("UploadDocument() error = %v", err)
	}
	if fake.sendDocumentCalls != 1 {
		t.Errorf("sendDocument calls = %d, want 1 (first attempt never reached the API)", fake.sendDocumentCalls)
	}
}

func TestDeleteMessage(t *testing.T) {
	tests := []struct {
		name     string
		script   []error
		attempts int
		wantGone bool
		wantErr  bool
	}{
		{
			name:   "success",
			script: nil,
		},
		{
			name:     "already gone maps to sentinel",
			script:   []error{&gotgbot.TelegramError{Code: 400, Description: "Bad Request: message to delete not found"}},
			wantGone: true,
			wantErr:  true,
		},
		{
			name:    "transport failure surfaces after retries",
			script:  []error{errors.New("timeout"), errors.New("timeout"), errors.New("timeout")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeBot{script: tt.script}
			c := newTestClient(fake, 3)

			err := c.DeleteMessage(context.Background(), 7, 99)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DeleteMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if gone := errors.Is(err, ErrMessageGone); gone != tt.wantGone {
				t.Errorf("errors.Is(err, ErrMessageGone) = %v, want %v", gone, tt.wantGone)
			}
		})
	}
}
