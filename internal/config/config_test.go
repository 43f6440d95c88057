package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear relevant envs
	os.Unsetenv("PORT")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("API_URL")
	os.Unsetenv("GUIDED_CHECKPOINT_OFFSET_MS")
	os.Unsetenv("VOICECHAT_QUIET_PERIOD_MS")

	c := Load()

	if c.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", c.Server.Port)
	}
	if c.Server.LogLevel != "info" || c.Debug() {
		t.Fatalf("expected default log level info, got %q", c.Server.LogLevel)
	}
	if c.Remote.BaseURL != "http://localhost:5000" {
		t.Fatalf("expected default remote base url, got %q", c.Remote.BaseURL)
	}
	if c.CheckpointOffset() != 2*time.Second || c.CheckpointTolerance() != 200*time.Millisecond {
		t.Fatalf("unexpected checkpoint window %s±%s", c.CheckpointOffset(), c.CheckpointTolerance())
	}
	if c.QuietPeriod() != 3*time.Second {
		t.Fatalf("expected 3s quiet period, got %s", c.QuietPeriod())
	}
	if !c.Guided.Autoplay || c.Guided.InitialVideoID != 1 {
		t.Fatalf("unexpected guided defaults %+v", c.Guided)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("API_URL", "http://decider:9000/")
	t.Setenv("VOICECHAT_QUIET_PERIOD_MS", "1500")
	t.Setenv("GUIDED_AUTOPLAY", "false")
	t.Setenv("LOG_LEVEL", "DEBUG")

	c := Load()

	if c.Remote.BaseURL != "http://decider:9000" {
		t.Fatalf("expected trailing slash trimmed, got %q", c.Remote.BaseURL)
	}
	if c.QuietPeriod() != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s quiet period, got %s", c.QuietPeriod())
	}
	if c.Guided.Autoplay {
		t.Fatalf("expected autoplay disabled")
	}
	if !c.Debug() {
		t.Fatalf("expected LOG_LEVEL=DEBUG to enable surface tracing")
	}
}
