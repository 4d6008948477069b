package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func envOf(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}

func TestDefaultsNeedCredentials(t *testing.T) {
	cfg := Default()
	require.ErrorIs(t, cfg.Validate(), ErrMissingCredentials)

	cfg.Credentials = Credentials{Username: "alice", Password: "secret"}
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvPrecedence(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(envOf(map[string]string{
		"USERNAME":         "fallback",
		"LINUXDO_USERNAME": "alice",
		"PASSWORD":         "pw",
		"BROWSE_ENABLED":   "true",
		"PUSH_TOKEN":       "tok",
	}))

	require.Equal(t, "alice", cfg.Credentials.Username)
	require.Equal(t, "pw", cfg.Credentials.Password)
	require.True(t, cfg.Browser.Enabled)
	require.Equal(t, "tok", cfg.Notify.Push.Token)
}

func TestApplyEnvOtlpEndpoint(t *testing.T) {
	cfg := Default()
	require.False(t, cfg.Telemetry.Otlp.Enabled())

	cfg.ApplyEnv(envOf(map[string]string{"OTEL_EXPORTER_OTLP_ENDPOINT": "http://collector:4318/"}))
	require.Equal(t, "http://collector:4318/v1/traces", cfg.Telemetry.Otlp.HttpEndpoint)

	cfg.ApplyEnv(envOf(map[string]string{
		"OTEL_EXPORTER_OTLP_ENDPOINT":        "http://collector:4318",
		"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT": "http://traces:4318/custom",
	}))
	require.Equal(t, "http://traces:4318/custom", cfg.Telemetry.Otlp.HttpEndpoint)
	require.True(t, cfg.Telemetry.Otlp.Enabled())
}

func TestApplyEnvIgnoresBadBool(t *testing.T) {
	cfg := Default()
	cfg.Browser.Enabled = true
	cfg.ApplyEnv(envOf(map[string]string{"BROWSE_ENABLED": "maybe"}))
	require.True(t, cfg.Browser.Enabled)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("LINUXDO_USERNAME", "")
	t.Setenv("USERNAME", "")
	t.Setenv("LINUXDO_PASSWORD", "")
	t.Setenv("PASSWORD", "")

	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		credentials: {username: "bob", password: "pw"},
		pacing: {topic_limit: 10},
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "bob", cfg.Credentials.Username)
	require.Equal(t, 10, cfg.Pacing.TopicLimit)
	require.Equal(t, 5, cfg.Pacing.FailureThreshold)
	require.Equal(t, "https://linux.do", cfg.Endpoints.BaseUrl)
	require.NoError(t, cfg.Validate())
}

func TestValidateEndpoints(t *testing.T) {
	cfg := Default()
	cfg.Credentials = Credentials{Username: "a", Password: "b"}
	cfg.Endpoints.ConnectUrl = "/relative"
	require.Error(t, cfg.Validate())
}
