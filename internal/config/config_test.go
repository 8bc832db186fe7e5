package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "REGION", "ACCESS_KEY_ID", "SECRET_ACCESS_KEY", "FLOW_ID", "INSTANCE_ID",
		"PROVIDER_ENDPOINT", "RELAY_URL", "CHAT_REFRESH_MARGIN", "CHAT_HTTP_TIMEOUT", "CHAT_STREAM_TOPIC", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.False(t, cfg.Provider.Enabled())
	require.Equal(t, "http://localhost:8080/connectChat", cfg.Client.RelayURL)
	require.Equal(t, 5*time.Second, cfg.Client.RefreshMargin)
	require.Equal(t, "aws/chat", cfg.Client.StreamTopic)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format)
}

func TestLoadServerAddr(t *testing.T) {
	cases := []struct {
		port    string
		want    string
		wantErr bool
	}{
		{port: "9000", want: ":9000"},
		{port: "127.0.0.1:9000", want: "127.0.0.1:9000"},
		{port: "90 00", wantErr: true},
	}

	for _, tc := range cases {
		t.Setenv("PORT", tc.port)
		got, err := loadServerConfig()
		if tc.wantErr {
			require.Error(t, err, tc.port)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tc.want, got.Addr)
	}
}

func TestLoadProviderConfig(t *testing.T) {
	t.Setenv("REGION", "us-east-1")
	t.Setenv("FLOW_ID", "flow")
	t.Setenv("INSTANCE_ID", "instance")
	t.Setenv("ACCESS_KEY_ID", "AKID")
	t.Setenv("SECRET_ACCESS_KEY", "")
	t.Setenv("PROVIDER_ENDPOINT", "")

	_, err := loadProviderConfig()
	require.Error(t, err)

	t.Setenv("SECRET_ACCESS_KEY", "secret")
	cfg, err := loadProviderConfig()
	require.NoError(t, err)
	require.True(t, cfg.Enabled())
	require.True(t, cfg.StaticCredentials())
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("CHAT_REFRESH_MARGIN", "2500")
	got, err := parseDurationEnv("CHAT_REFRESH_MARGIN", time.Second)
	require.NoError(t, err)
	require.Equal(t, 2500*time.Millisecond, got)

	t.Setenv("CHAT_REFRESH_MARGIN", "3s")
	got, err = parseDurationEnv("CHAT_REFRESH_MARGIN", time.Second)
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, got)

	t.Setenv("CHAT_REFRESH_MARGIN", "soon")
	_, err = parseDurationEnv("CHAT_REFRESH_MARGIN", time.Second)
	require.Error(t, err)
}

func TestLoadLogConfigRejectsUnknownFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	_, err := loadLogConfig()
	require.Error(t, err)
}

func TestLoadLogConfigLevel(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "DEBUG")
	cfg, err := loadLogConfig()
	require.NoError(t, err)
	require.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg)

	t.Setenv("LOG_LEVEL", "verbose")
	_, err = loadLogConfig()
	require.Error(t, err)
}
