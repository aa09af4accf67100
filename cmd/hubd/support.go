package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// newLogger builds the daemon's structured logger, matching the teacher's
// log/slog text-handler-to-stderr convention for its own daemons.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// noCredentialsTokenFetcher always fails: the credentials daemon that would
// resolve OAuth tokens for plugins is out of scope for this repository
// (SPEC_FULL.md §1), so plugins requesting the credentials capability get a
// clear error instead of a silent empty token.
type noCredentialsTokenFetcher struct{}

func (noCredentialsTokenFetcher) FetchToken(ctx context.Context, providerID string) (string, error) {
	return "", fmt.Errorf("no credentials store configured for provider %q", providerID)
}

func minutesToDuration(minutes int) time.Duration {
	if minutes <= 0 {
		minutes = 15
	}
	return time.Duration(minutes) * time.Minute
}
