package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/shopdesk/inbox"
	"github.com/shopdesk/inbox/snapshot"
)

// newLogger builds the CLI logger. Logs go to stderr unless --log-file is set,
// in which case they go to a rotated file.
func newLogger() *slog.Logger {
	var w io.Writer = os.Stderr
	if logFile != "" {
		path, err := homedir.Expand(logFile)
		if err != nil {
			path = logFile
		}
		w = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // Megabytes
			MaxBackups: 3,
			MaxAge:     30, // Days
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(logLevel)}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// session is an inbox hydrated from the local snapshot.
type session struct {
	cfg   *Config
	inbox *inbox.Inbox
	snap  *snapshot.DB
	log   *slog.Logger
}

// openSession builds the client and inbox from the effective configuration
// and restores the last saved conversations into its store.
func openSession(ctx context.Context, metrics *inbox.Metrics) (*session, error) {
	cfg, err := effectiveConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Default.APIKey == "" {
		return nil, errors.New("no API key. Run 'inbox init <api-key>' first")
	}
	interval, err := cfg.pollInterval()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.location()
	if err != nil {
		return nil, err
	}

	var opts []inbox.ClientOption
	if cfg.Default.BaseURL != "" {
		opts = append(opts, inbox.WithBaseURL(cfg.Default.BaseURL))
	}
	client := inbox.NewClient(cfg.Default.APIKey, opts...)

	snap, err := snapshot.Open(cfg.snapshotPath())
	if err != nil {
		return nil, err
	}
	saved, err := snap.Load(ctx)
	if err != nil {
		snap.Close()
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	store := inbox.NewStore()
	store.Restore(saved)

	log := newLogger()
	in := inbox.New(store, client, &inbox.Options{
		StoreRef:     cfg.Default.StoreRef,
		PollInterval: interval,
		Delimiter:    cfg.Sync.Delimiter,
		Location:     loc,
		Logger:       log,
		Metrics:      metrics,
	})
	return &session{cfg: cfg, inbox: in, snap: snap, log: log}, nil
}

// save writes the current store back to the snapshot.
func (s *session) save(ctx context.Context) error {
	if err := s.snap.Save(ctx, s.inbox.Store().Snapshot()); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *session) Close() {
	s.inbox.Close()
	s.snap.Close()
}

// resolveConversation finds a conversation in scope by id or unique id prefix.
func resolveConversation(store *inbox.Store, scope inbox.Scope, idOrPrefix string) (inbox.Conversation, error) {
	if c, ok := store.Get(scope, idOrPrefix); ok {
		return c, nil
	}
	var matches []inbox.Conversation
	for _, c := range store.List(scope) {
		if strings.HasPrefix(c.ID, idOrPrefix) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return inbox.Conversation{}, fmt.Errorf("%s conversation %q: %w", scope, idOrPrefix, inbox.ErrConversationNotFound)
	case 1:
		return matches[0], nil
	}
	return inbox.Conversation{}, fmt.Errorf("%q matches %d %s conversations, use a longer prefix", idOrPrefix, len(matches), scope)
}

// parseDay parses a YYYY-MM-DD flag value in loc. An empty value is nil.
func parseDay(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return &t, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func senderName(s inbox.Sender) string {
	if s == inbox.SenderSelf {
		return "you"
	}
	return "them"
}

// maskKey shows the first 6 and last 4 characters of a key.
func maskKey(key string) string {
	if len(key) <= 10 {
		return "****"
	}
	return key[:6] + "..." + key[len(key)-4:]
}

func valueOrDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
