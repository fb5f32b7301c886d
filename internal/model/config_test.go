package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MAILSORT_IMAP_SERVER", "MAILSORT_IMAP_USERNAME", "MAILSORT_IMAP_PASSWORD",
		"MAILSORT_IMAP_MAX_MESSAGES", "MAILSORT_DISPLAY_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultServer, cfg.IMAP.Server)
	assert.Equal(t, DefaultMailbox, cfg.IMAP.Mailbox)
	assert.Equal(t, DefaultMaxMessages, cfg.IMAP.MaxMessages)
	assert.Equal(t, FormatTable, cfg.Display.Format)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, DefaultHistoryKeep, cfg.History.Keep)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigLayers(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
imap:
  server: mail.example.com:993
  username: file-user
  max_messages: 25
display:
  format: yaml
`), 0o600))

	t.Setenv("MAILSORT_IMAP_USERNAME", "env-user")
	t.Setenv("MAILSORT_IMAP_PASSWORD", "env-secret")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("max", DefaultMaxMessages, "")
	flags.String("format", FormatTable, "")
	require.NoError(t, flags.Parse([]string{"--max", "3"}))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "mail.example.com:993", cfg.IMAP.Server, "file")
	assert.Equal(t, "env-user", cfg.IMAP.Username, "env beats file")
	assert.Equal(t, "env-secret", cfg.IMAP.Password)
	assert.Equal(t, 3, cfg.IMAP.MaxMessages, "flag beats file")
	assert.Equal(t, FormatYAML, cfg.Display.Format, "unchanged flag does not beat file")
}

func TestLoadConfigMalformed(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("imap: [unterminated"), 0o600))

	_, err := LoadConfig(path, nil)
	assert.Error(t, err)
}

func TestSaveUsernameCreatesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, SaveUsername(path, "alice"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "max_messages")
	assert.NotContains(t, string(data), "password")

	reloaded, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", reloaded.IMAP.Username)
	assert.Equal(t, DefaultMaxMessages, reloaded.IMAP.MaxMessages)
}

func TestSaveUsernameKeepsFileOnlySettings(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
imap:
  server: mail.example.com:993
  max_messages: 25
display:
  format: yaml
`), 0o600))

	// A one-off override in the environment must not be persisted.
	t.Setenv("MAILSORT_IMAP_MAX_MESSAGES", "3")
	t.Setenv("MAILSORT_IMAP_PASSWORD", "hunter2")

	require.NoError(t, SaveUsername(path, "bob"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.NotContains(t, string(data), "log")

	clearEnv(t)
	reloaded, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "bob", reloaded.IMAP.Username)
	assert.Equal(t, "mail.example.com:993", reloaded.IMAP.Server)
	assert.Equal(t, 25, reloaded.IMAP.MaxMessages)
	assert.Equal(t, FormatYAML, reloaded.Display.Format)
}

func TestValidate(t *testing.T) {
	valid := func() *AppConfig {
		return &AppConfig{
			IMAP:    IMAPConfig{Server: DefaultServer, MaxMessages: 10},
			Display: DisplayConfig{Format: FormatJSON},
		}
	}
	require.NoError(t, valid().Validate())

	c := valid()
	c.IMAP.Server = " "
	assert.Error(t, c.Validate())

	c = valid()
	c.IMAP.MaxMessages = -1
	assert.Error(t, c.Validate())

	c = valid()
	c.IMAP.MaxMessages = 0
	assert.NoError(t, c.Validate(), "a zero window is allowed and yields an empty result")

	c = valid()
	c.Display.Format = "csv"
	assert.Error(t, c.Validate())

	c = valid()
	c.Display.RefreshIntervalSec = -5
	assert.Error(t, c.Validate())

	c = valid()
	c.History.Keep = -1
	assert.Error(t, c.Validate())
}

func TestFetchConfig(t *testing.T) {
	c := &AppConfig{IMAP: IMAPConfig{Server: "s:993", Mailbox: "Archive", MaxMessages: 4, TimeoutSec: 15}}
	got := c.FetchConfig(SecretPair{Username: "u", Password: "p"})

	assert.Equal(t, Config{
		Server:      "s:993",
		Mailbox:     "Archive",
		MaxMessages: 4,
		Credentials: SecretPair{Username: "u", Password: "p"},
		Timeout:     15 * time.Second,
	}, got)
}

func TestSecretPairString(t *testing.T) {
	s := SecretPair{Username: "alice", Password: "hunter2"}
	assert.Equal(t, "alice:<redacted>", s.String())
	assert.True(t, s.Complete())
	assert.False(t, SecretPair{Username: "alice"}.Complete())
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid())
	}
	assert.False(t, Category("Spam").Valid())
}
