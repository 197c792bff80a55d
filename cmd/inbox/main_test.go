package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopdesk/inbox"
)

func TestSetConfigValue(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, setConfigValue(cfg, "default.api_key", "sk-123"))
	require.NoError(t, setConfigValue(cfg, "default.store_ref", "store-9"))
	require.NoError(t, setConfigValue(cfg, "sync.poll_interval", "90s"))
	require.NoError(t, setConfigValue(cfg, "sync.delimiter", ";;"))
	require.NoError(t, setConfigValue(cfg, "sync.timezone", "UTC"))

	assert.Equal(t, "sk-123", cfg.Default.APIKey)
	assert.Equal(t, "store-9", cfg.Default.StoreRef)
	assert.Equal(t, ";;", cfg.Sync.Delimiter)
	d, err := cfg.pollInterval()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	assert.Error(t, setConfigValue(cfg, "api_key", "x"))
	assert.Error(t, setConfigValue(cfg, "default.nope", "x"))
	assert.Error(t, setConfigValue(cfg, "auth.token", "x"))
	assert.Error(t, setConfigValue(cfg, "sync.poll_interval", "often"))
	assert.Error(t, setConfigValue(cfg, "sync.timezone", "Mars/Olympus"))
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	d, err := cfg.pollInterval()
	require.NoError(t, err)
	assert.Equal(t, inbox.DefaultPollInterval, d)

	loc, err := cfg.location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
	assert.Equal(t, defaultSnapshotPath, cfg.snapshotPath())
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{Default: ConfigDefault{APIKey: "file-key", BaseURL: "https://file.example.com", StoreRef: "file-store"}}
	env := map[string]string{envAPIKey: "env-key", envStoreRef: "env-store"}
	applyEnv(cfg, func(k string) string { return env[k] })

	assert.Equal(t, "env-key", cfg.Default.APIKey)
	assert.Equal(t, "https://file.example.com", cfg.Default.BaseURL)
	assert.Equal(t, "env-store", cfg.Default.StoreRef)
}

func TestParseDay(t *testing.T) {
	day, err := parseDay("2024-01-31", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), *day)

	day, err = parseDay("", time.UTC)
	require.NoError(t, err)
	assert.Nil(t, day)

	_, err = parseDay("31/01/2024", time.UTC)
	assert.Error(t, err)
}

func TestResolveConversation(t *testing.T) {
	store := inbox.NewStore()
	a := inbox.NewConversation("ana@example.com", inbox.StoreSubject{})
	b := inbox.NewConversation("bo@example.com", inbox.StoreSubject{})
	store.Restore([]inbox.Conversation{a, b})

	got, err := resolveConversation(store, inbox.ScopeStore, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	got, err = resolveConversation(store, inbox.ScopeStore, a.ID[:12])
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", got.Counterpart)

	_, err = resolveConversation(store, inbox.ScopeProduct, a.ID)
	assert.ErrorIs(t, err, inbox.ErrConversationNotFound)

	_, err = resolveConversation(store, inbox.ScopeStore, "")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestConfigEntries(t *testing.T) {
	file := &Config{
		Default: ConfigDefault{APIKey: "sk-file-0123456789", StoreRef: "file-store"},
		Sync:    ConfigSync{PollInterval: "90s"},
	}
	eff := *file
	applyEnv(&eff, func(k string) string {
		if k == envStoreRef {
			return "env-store"
		}
		return ""
	})

	got := map[string]configEntry{}
	for _, e := range configEntries(file, &eff) {
		got[e.Key] = e
	}
	require.Len(t, got, 7)

	assert.Equal(t, configEntry{"default.api_key", "sk-fil...6789", "file"}, got["default.api_key"])
	assert.Equal(t, configEntry{"default.store_ref", "env-store", "env"}, got["default.store_ref"])
	assert.Equal(t, configEntry{"default.base_url", inbox.DefaultBaseURL, "default"}, got["default.base_url"])
	assert.Equal(t, configEntry{"sync.poll_interval", "90s", "file"}, got["sync.poll_interval"])
	assert.Equal(t, configEntry{"sync.delimiter", inbox.DefaultDelimiter, "default"}, got["sync.delimiter"])
	assert.Equal(t, configEntry{"sync.snapshot_path", defaultSnapshotPath, "default"}, got["sync.snapshot_path"])
	assert.Equal(t, configEntry{"sync.timezone", "UTC", "default"}, got["sync.timezone"])
}

func TestConfigEntriesUnsetKey(t *testing.T) {
	cfg := &Config{}
	entries := configEntries(cfg, cfg)
	assert.Equal(t, configEntry{"default.api_key", "(not set)", "default"}, entries[0])
}

func TestWithEnvLeavesFileConfig(t *testing.T) {
	t.Setenv(envAPIKey, "sk-from-env-123456")
	file := &Config{Default: ConfigDefault{APIKey: "sk-file"}}

	eff := withEnv(file)
	assert.Equal(t, "sk-from-env-123456", eff.Default.APIKey)
	assert.Equal(t, "sk-file", file.Default.APIKey)
}
