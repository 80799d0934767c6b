package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "0x00000000000000000000000000000000000000aA"

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("WALLET", testWallet)
	t.Setenv("PUSHOVER_APP_TOKEN", "app-token")
	t.Setenv("PUSHOVER_USER_KEY", "user-key")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, testWallet, cfg.Position.Wallet)
	assert.Equal(t, "arbitrum", cfg.Position.Chain)
	assert.Equal(t, 1.3, cfg.Monitor.HFThreshold)
	assert.Equal(t, 15*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, 8, cfg.Schedule.MorningHour)
	assert.Equal(t, 20, cfg.Schedule.EveningHour)
	assert.Equal(t, "UTC", cfg.Schedule.Timezone)
	assert.Equal(t, []string{ChannelPushover}, cfg.Alerting.Channels)
	assert.Equal(t, "echo", cfg.Alerting.Pushover.Sound)
	assert.Equal(t, time.Minute, cfg.Alerting.Pushover.Retry)
	assert.Equal(t, time.Hour, cfg.Alerting.Pushover.Expire)
	assert.Equal(t, "https://app.aave.com/", cfg.Alerting.ActionURL)
	assert.Equal(t, "AAVE App", cfg.Alerting.ActionLabel)

	network, err := cfg.Network()
	require.NoError(t, err)
	assert.Equal(t, "arbitrum", network.Name)
	assert.Equal(t, "https://arb1.arbitrum.io/rpc", network.RPCURL)
}

func TestLoadPrefixedOverridesAndFile(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("HFWATCHER_SCHEDULE_TIMEZONE", "Asia/Tokyo")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("monitor:\n  hf_threshold: 1.5\nschedule:\n  morning_hour: 7\nalerting:\n  channels: [pushover, telegram]\n  telegram:\n    bot_token: bot\n    chat_id: \"42\"\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1.5, cfg.Monitor.HFThreshold)
	assert.Equal(t, 7, cfg.Schedule.MorningHour)
	assert.Equal(t, "Asia/Tokyo", cfg.Schedule.Timezone)
	assert.Equal(t, []string{ChannelPushover, ChannelTelegram}, cfg.Alerting.Channels)
}

func TestPollIntervalMilliseconds(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"30000", 30 * time.Second},
		{"250", MinPollInterval},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv("POLL_INTERVAL_MS", tc.raw)

			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg.Monitor.PollInterval)
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing wallet":      {"WALLET": ""},
		"bad wallet":          {"WALLET": "0x1234"},
		"zero threshold":      {"HF_THRESHOLD": "0"},
		"threshold too large": {"HF_THRESHOLD": "101"},
		"morning hour":        {"HFWATCHER_SCHEDULE_MORNING_HOUR": "24"},
		"evening hour":        {"HFWATCHER_SCHEDULE_EVENING_HOUR": "-1"},
		"timezone":            {"HFWATCHER_SCHEDULE_TIMEZONE": "Mars/Olympus"},
		"unknown chain":       {"CHAIN": "solana"},
		"pushover token":      {"PUSHOVER_APP_TOKEN": ""},
		"telegram token":      {"HFWATCHER_ALERTING_CHANNELS": "telegram"},
		"unknown channel":     {"HFWATCHER_ALERTING_CHANNELS": "email"},
		"retry too short":     {"HFWATCHER_ALERTING_PUSHOVER_RETRY": "10s"},
		"expire too long":     {"HFWATCHER_ALERTING_PUSHOVER_EXPIRE": "4h"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 500}}
	assert.Equal(t, 500, cfg.ResolveMaxPoints(0))
	assert.Equal(t, 20, cfg.ResolveMaxPoints(20))
}
