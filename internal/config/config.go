package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port     string
		LogLevel string
	}
	Metrics struct {
		Addr string
	}
	Remote struct {
		BaseURL string
	}
	Guided struct {
		InitialVideoID        int
		CheckpointOffsetMS    int
		CheckpointToleranceMS int
		Autoplay              bool
	}
	VoiceChat struct {
		QuietPeriodMS int
	}
	Surface struct {
		TokenSecret    string
		TokenSkewSecs  int
		TokenExpMin    int
		WriteTimeoutMS int
	}
	Capture struct {
		StopTimeoutMS int
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("metrics.addr", ":8082")

	v.SetDefault("remote.base_url", "http://localhost:5000")

	v.SetDefault("guided.initial_video_id", 1)
	v.SetDefault("guided.checkpoint_offset_ms", 2000)
	v.SetDefault("guided.checkpoint_tolerance_ms", 200)
	v.SetDefault("guided.autoplay", true)

	v.SetDefault("voicechat.quiet_period_ms", 3000)

	v.SetDefault("surface.token_skew_secs", 60)
	v.SetDefault("surface.token_exp_min", 720)
	v.SetDefault("surface.write_timeout_ms", 2000)

	v.SetDefault("capture.stop_timeout_ms", 10000)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("metrics.addr", "METRICS_ADDR")

	v.BindEnv("remote.base_url", "API_URL")

	v.BindEnv("guided.initial_video_id", "GUIDED_INITIAL_VIDEO_ID")
	v.BindEnv("guided.checkpoint_offset_ms", "GUIDED_CHECKPOINT_OFFSET_MS")
	v.BindEnv("guided.checkpoint_tolerance_ms", "GUIDED_CHECKPOINT_TOLERANCE_MS")
	v.BindEnv("guided.autoplay", "GUIDED_AUTOPLAY")

	v.BindEnv("voicechat.quiet_period_ms", "VOICECHAT_QUIET_PERIOD_MS")

	v.BindEnv("surface.token_secret", "SURFACE_TOKEN_SECRET")
	v.BindEnv("surface.token_skew_secs", "SURFACE_TOKEN_SKEW_SECS")
	v.BindEnv("surface.token_exp_min", "SURFACE_TOKEN_EXP_MIN")
	v.BindEnv("surface.write_timeout_ms", "SURFACE_WRITE_TIMEOUT_MS")

	v.BindEnv("capture.stop_timeout_ms", "CAPTURE_STOP_TIMEOUT_MS")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Metrics.Addr = v.GetString("metrics.addr")

	c.Remote.BaseURL = strings.TrimRight(v.GetString("remote.base_url"), "/")

	c.Guided.InitialVideoID = v.GetInt("guided.initial_video_id")
	c.Guided.CheckpointOffsetMS = v.GetInt("guided.checkpoint_offset_ms")
	c.Guided.CheckpointToleranceMS = v.GetInt("guided.checkpoint_tolerance_ms")
	c.Guided.Autoplay = v.GetBool("guided.autoplay")

	c.VoiceChat.QuietPeriodMS = v.GetInt("voicechat.quiet_period_ms")

	c.Surface.TokenSecret = v.GetString("surface.token_secret")
	c.Surface.TokenSkewSecs = v.GetInt("surface.token_skew_secs")
	c.Surface.TokenExpMin = v.GetInt("surface.token_exp_min")
	c.Surface.WriteTimeoutMS = v.GetInt("surface.write_timeout_ms")

	c.Capture.StopTimeoutMS = v.GetInt("capture.stop_timeout_ms")

	log.Printf("config loaded: port=%s remote=%s checkpoint=%dms±%dms quiet=%dms",
		c.Server.Port, c.Remote.BaseURL, c.Guided.CheckpointOffsetMS, c.Guided.CheckpointToleranceMS, c.VoiceChat.QuietPeriodMS)
	return c
}

// Debug reports whether per-message surface traffic should be logged.
func (c Config) Debug() bool { return strings.EqualFold(c.Server.LogLevel, "debug") }

// WriteTimeout bounds a single websocket write to the surface.
func (c Config) WriteTimeout() time.Duration { return ms(c.Surface.WriteTimeoutMS) }

// StopTimeout bounds waiting for the surface to hand over a finished recording.
func (c Config) StopTimeout() time.Duration { return ms(c.Capture.StopTimeoutMS) }

func (c Config) CheckpointOffset() time.Duration { return ms(c.Guided.CheckpointOffsetMS) }

func (c Config) CheckpointTolerance() time.Duration { return ms(c.Guided.CheckpointToleranceMS) }

func (c Config) QuietPeriod() time.Duration { return ms(c.VoiceChat.QuietPeriodMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func toString(v any) string { return fmt.Sprint(v) }
