// Package sweeper ages out delivery records: file-cache rows are dropped
// locally, sent messages are deleted on Telegram first and only then removed
// from the store.
package sweeper

import (
	"context"
	"errors"
	"time"

	"release-relay/internal/store"
	"release-relay/internal/telegram"

	"github.com/rs/zerolog"
)

type Service struct {
	store     *store.Store
	client    *telegram.Client
	retention time.Duration
	interval  time.Duration
	log       zerolog.Logger
}

func New(st *store.Store, client *telegram.Client, retention, interval time.Duration, log zerolog.Logger) *Service {
	return &Service{
		store:     st,
		client:    client,
		retention: retention,
		interval:  interval,
		log:       log,
	}
}

// Run executes one sweep per interval until the context is cancelled. The
// single loop guarantees passes never overlap.
func (s *Service) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Dur("retention", s.retention).Msg("sweeper started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep performs one retention pass. A failure on one record never stops
// the attempts on the others; records that could not be deleted remotely
// stay in the store for the next pass.
func (s *Service) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)

	pruned, err := s.store.DeleteCacheBefore(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("pruning file cache failed")
	} else if pruned > 0 {
		s.log.Info().Int64("entries", pruned).Msg("file cache pruned")
	}

	msgs, err := s.store.SentBefore(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("selecting old messages failed")
		return
	}
	if len(msgs) == 0 {
		return
	}

	var removed, kept int
	for _, m := range msgs {
		err := s.client.DeleteMessage(ctx, m.ChatID, m.MessageID)
		switch {
		case err == nil, errors.Is(err, telegram.ErrMessageGone):
			if err := s.store.DeleteSent(ctx, m.ID); err != nil {
				s.log.Error().Err(err).Int64("id", m.ID).Msg("deleting local record failed")
				kept++
				continue
			}
			removed++
		default:
			// Leave the record for the next pass.
			s.log.Warn().Err(err).Int64("chat_id", m.ChatID).Int64("message_id", m.MessageID).Msg("remote delete failed")
			kept++
		}
	}
	s.log.Info().Int("removed", removed).Int("kept", kept).Msg("retention sweep finished")
}
