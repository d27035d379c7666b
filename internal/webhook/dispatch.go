package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"release-relay/internal/config"
	"release-relay/internal/models"
	"release-relay/internal/store"
	"release-relay/internal/telegram"

	"github.com/rs/zerolog"
)

// Dispatcher delivers one release asset to the matching targets. The first
// delivery of an asset downloads it once and uploads it to a single target;
// every other send reuses the Telegram file_id, which is cached in the store
// so restarts and redelivered events do not upload again.
type Dispatcher struct {
	cfg    *config.Config
	store  *store.Store
	client *telegram.Client
	http   *http.Client
	log    zerolog.Logger

	mu      sync.Mutex
	uploads map[string]*assetLock
}

// assetLock serializes work on one asset URL. refs counts the goroutines
// holding or waiting on the lock so the map entry can be dropped when the
// last one leaves.
type assetLock struct {
	mu   sync.Mutex
	refs int
}

func NewDispatcher(cfg *config.Config, st *store.Store, client *telegram.Client, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		store:   st,
		client:  client,
		http:    &http.Client{Timeout: 3 * time.Minute},
		log:     log,
		uploads: map[string]*assetLock{},
	}
}

// acquireUploadLock takes the mutex guarding cache-check/upload/cache-populate
// for one asset URL. Webhook deliveries are handled concurrently; without
// the lock two deliveries of the same event could both miss the cache and
// upload the same asset twice. Entries only exist while an asset is in
// flight, so the map does not grow with the number of URLs ever seen.
func (d *Dispatcher) acquireUploadLock(url string) *assetLock {
	d.mu.Lock()
	l, ok := d.uploads[url]
	if !ok {
		l = &assetLock{}
		d.uploads[url] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return l
}

func (d *Dispatcher) releaseUploadLock(url string, l *assetLock) {
	l.mu.Unlock()
	d.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(d.uploads, url)
	}
	d.mu.Unlock()
}

// Dispatch sends one asset to every target whose filter matches the release
// tag. An error aborts this asset only; the caller continues with siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, rel *models.Release, asset models.Asset) error {
	log := d.log.With().Str("asset", asset.Name).Str("repo", rel.Repo).Logger()

	if asset.Size > d.cfg.MaxAssetSize {
		log.Info().Int64("size", asset.Size).Int64("limit", d.cfg.MaxAssetSize).Msg("asset exceeds size ceiling, skipping")
		return nil
	}

	targets := matchTargets(d.cfg.Targets, rel.Tag)
	if len(targets) == 0 {
		return nil
	}

	filename := sanitizeFilename(asset.Name)
	caption := formatAssetCaption(rel, filename)

	lock := d.acquireUploadLock(asset.URL)

	fileID, cached, err := d.store.CachedFileID(ctx, asset.URL)
	if err != nil {
		// Degrade to a cache miss; the cache is best-effort.
		log.Error().Err(err).Msg("file cache lookup failed")
		cached = false
	}

	rest := targets
	if !cached {
		first := targets[0]
		fileID, err = d.uploadTo(ctx, first, caption, filename, asset.URL)
		if err != nil {
			d.releaseUploadLock(asset.URL, lock)
			return fmt.Errorf("upload %s: %w", asset.Name, err)
		}
		if err := d.store.PutFileID(ctx, asset.URL, fileID); err != nil {
			log.Error().Err(err).Msg("recording file_id failed")
		}
		rest = targets[1:]
	}
	d.releaseUploadLock(asset.URL, lock)

	for _, t := range rest {
		msgID, err := d.client.SendDocumentByID(ctx, t, caption, fileID)
		if err != nil {
			log.Error().Err(err).Int64("chat_id", t.ChatID).Msg("sending cached document failed")
			continue
		}
		d.recordSent(ctx, t.ChatID, msgID)
	}
	return nil
}

// uploadTo streams the asset from its source URL into a document upload for
// a single target and records the resulting message. Retries inside the
// client reopen the download from scratch.
func (d *Dispatcher) uploadTo(ctx context.Context, to models.Target, caption, filename, url string) (string, error) {
	open := func(ctx context.Context) (io.ReadCloser, error) {
		return d.download(ctx, url)
	}
	fileID, msgID, err := d.client.UploadDocument(ctx, to, caption, filename, open)
	if err != nil {
		return "", err
	}
	d.recordSent(ctx, to.ChatID, msgID)
	return fileID, nil
}

func (d *Dispatcher) download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// recordSent persists the cleanup record for a delivered message. The send
// already succeeded, so a persistence failure is logged but never propagated.
func (d *Dispatcher) recordSent(ctx context.Context, chatID, messageID int64) {
	if err := d.store.RecordSent(ctx, chatID, messageID); err != nil {
		d.log.Error().Err(err).Int64("chat_id", chatID).Int64("message_id", messageID).Msg("recording sent message failed")
	}
}

func matchTargets(targets []models.Target, tag string) []models.Target {
	var out []models.Target
	for _, t := range targets {
		if t.Matches(tag) {
			out = append(out, t)
		}
	}
	return out
}
