package models

import (
	"strings"
	"time"
)

// Target is one configured delivery destination. Targets are loaded once at
// startup and never change for the process lifetime.
type Target struct {
	ChatID    int64  `yaml:"chat_id"`
	ThreadID  int64  `yaml:"thread_id,omitempty"`
	FilterTag string `yaml:"filter_tag,omitempty"`
}

// Matches reports whether the target wants releases with the given tag.
// An empty filter matches everything; otherwise the filter must appear in the
// tag, case-insensitively.
func (t Target) Matches(tag string) bool {
	if t.FilterTag == "" {
		return true
	}
	return strings.Contains(strings.ToLower(tag), strings.ToLower(t.FilterTag))
}

// SentMessage records one message delivered to Telegram, kept so the sweeper
// can delete it once it ages out.
type SentMessage struct {
	ID        int64
	ChatID    int64
	MessageID int64
	SentAt    time.Time
}

// CachedFile maps an asset download URL to the Telegram file_id obtained from
// the first successful upload of that asset.
type CachedFile struct {
	ID        int64
	AssetURL  string
	FileID    string
	CreatedAt time.Time
}

// Release is the parsed subset of a GitHub release event that the relay
// acts on. It is transient and never persisted.
type Release struct {
	Repo   string
	Tag    string
	Title  string
	Author string
	URL    string
	Assets []Asset
}

// Asset is one downloadable file attached to a release.
type Asset struct {
	Name string
	URL  string
	Size int64
}
