// Package webhook receives GitHub release webhooks and relays them to the
// configured Telegram targets.
package webhook

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"release-relay/internal/config"
	"release-relay/internal/models"
	"release-relay/internal/store"
	"release-relay/internal/telegram"

	"github.com/google/go-github/v80/github"
	"github.com/rs/zerolog"
)

type Server struct {
	cfg        *config.Config
	store      *store.Store
	client     *telegram.Client
	dispatcher *Dispatcher
	log        zerolog.Logger
}

func NewServer(cfg *config.Config, st *store.Store, client *telegram.Client, dispatcher *Dispatcher, log zerolog.Logger) *Server {
	return &Server{
		cfg:        cfg,
		store:      st,
		client:     client,
		dispatcher: dispatcher,
		log:        log,
	}
}

type statusResponse struct {
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// Handler processes one webhook delivery to completion before responding:
// signature check, event filtering, announcement fan-out, then sequential
// asset dispatch.
func (s *Server) Handler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	// ValidatePayload does the constant-time HMAC-SHA256 comparison against
	// X-Hub-Signature-256. An empty secret skips verification; main warns
	// about that at startup.
	payload, err := github.ValidatePayload(r, []byte(s.cfg.WebhookSecret))
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("webhook signature rejected")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if len(s.cfg.Targets) == 0 {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ignored", Reason: "no targets configured"})
		return
	}
	if github.WebHookType(r) != "release" {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ignored", Reason: "not a release event"})
		return
	}

	event, err := github.ParseWebHook("release", payload)
	if err != nil {
		s.log.Error().Err(err).Msg("webhook payload undecodable")
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "malformed payload"})
		return
	}
	re, ok := event.(*github.ReleaseEvent)
	if !ok {
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "malformed payload"})
		return
	}

	owner := re.GetRepo().GetOwner().GetLogin()
	if owner == "" {
		s.log.Error().Str("missing", "repository.owner.login").Msg("webhook payload incomplete")
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "malformed payload: repository.owner.login"})
		return
	}
	if !strings.EqualFold(owner, s.cfg.GitHubUser) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ignored", Reason: "repository owner not watched"})
		return
	}
	if re.GetAction() != "published" {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ignored", Reason: "not a published release"})
		return
	}

	rel, err := s.releaseFromEvent(re)
	if err != nil {
		s.log.Error().Err(err).Msg("webhook payload incomplete")
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: err.Error()})
		return
	}

	s.relay(r, rel)
	writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

// relay sends the announcement to every matching target and then dispatches
// each asset in order. Failures are per-target and per-asset: one bad
// delivery never aborts the rest.
func (s *Server) relay(r *http.Request, rel *models.Release) {
	ctx := r.Context()
	text := formatAnnouncement(rel)

	for _, t := range s.cfg.Targets {
		if !t.Matches(rel.Tag) {
			continue
		}
		msgID, err := s.client.SendText(ctx, t, text)
		if err != nil {
			s.log.Error().Err(err).Int64("chat_id", t.ChatID).Msg("announcement delivery failed")
			continue
		}
		if err := s.store.RecordSent(ctx, t.ChatID, msgID); err != nil {
			s.log.Error().Err(err).Int64("chat_id", t.ChatID).Msg("recording sent message failed")
		}
	}

	for _, asset := range rel.Assets {
		if err := s.dispatcher.Dispatch(ctx, rel, asset); err != nil {
			s.log.Error().Err(err).Str("asset", asset.Name).Msg("asset dispatch failed")
		}
	}
	s.log.Info().Str("repo", rel.Repo).Str("tag", rel.Tag).Int("assets", len(rel.Assets)).Msg("release relayed")
}

// releaseFromEvent maps the typed payload onto the internal release model.
// A missing release-level field rejects the whole event; an asset entry
// without a name or download URL is skipped so its siblings still go out.
func (s *Server) releaseFromEvent(re *github.ReleaseEvent) (*models.Release, error) {
	release := re.GetRelease()

	required := []struct {
		key   string
		value string
	}{
		{"repository.full_name", re.GetRepo().GetFullName()},
		{"release.tag_name", release.GetTagName()},
		{"release.html_url", release.GetHTMLURL()},
		{"release.author.login", release.GetAuthor().GetLogin()},
	}
	for _, f := range required {
		if f.value == "" {
			return nil, fmt.Errorf("malformed payload: %s", f.key)
		}
	}

	rel := &models.Release{
		Repo:   re.GetRepo().GetFullName(),
		Tag:    release.GetTagName(),
		Title:  release.GetName(),
		Author: release.GetAuthor().GetLogin(),
		URL:    release.GetHTMLURL(),
	}
	for _, a := range release.Assets {
		if a.GetName() == "" || a.GetBrowserDownloadURL() == "" {
			s.log.Warn().Str("repo", rel.Repo).Str("tag", rel.Tag).Msg("asset entry missing name or download url, skipped")
			continue
		}
		rel.Assets = append(rel.Assets, models.Asset{
			Name: a.GetName(),
			URL:  a.GetBrowserDownloadURL(),
			Size: int64(a.GetSize()),
		})
	}
	return rel, nil
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
