package wot

import (
	"context"
	"time"
)

// Settings is the persisted adapter configuration.
type Settings struct {
	// PollInterval overrides the configured interval when positive.
	PollInterval time.Duration

	// URLs are the manually added description URLs.
	URLs []string
}

// ConfigStore persists Settings. Implemented by settings.Repository.
type ConfigStore interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}
