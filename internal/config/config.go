package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	Log      LogConfig      `mapstructure:"log"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Client   ClientConfig   `mapstructure:"client"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type UpstreamConfig struct {
	URL         string        `mapstructure:"url"`
	APIKey      string        `mapstructure:"api_key"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type AudioConfig struct {
	SampleRate       int           `mapstructure:"sample_rate"`
	FramesPerBuffer  int           `mapstructure:"frames_per_buffer"`
	ChunkSize        int           `mapstructure:"chunk_size"`
	InterruptTimeout time.Duration `mapstructure:"interrupt_timeout"`
	SpeechThreshold  float64       `mapstructure:"speech_threshold"`
	SpeechHoldFrames int           `mapstructure:"speech_hold_frames"`
}

type ClientConfig struct {
	RelayURL string `mapstructure:"relay_url"`
	Record   string `mapstructure:"record"`
}

// Flags registers the command line flags Load understands.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config-env", "", "config file suffix, overrides CONFIG_ENV")
	fs.String("relay", "", "relay websocket url")
	fs.String("record", "", "write captured microphone audio to this wav file")
	return fs
}

// Load reads .env, config/config.<env>.yaml and VOICE_* variables, in
// increasing precedence, then applies parsed flags from fs (may be nil).
func Load(fs *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if fs != nil {
		if f := fs.Lookup("config-env"); f != nil && f.Changed {
			env = f.Value.String()
		}
	}
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8081)
	v.SetDefault("secret", "change-me")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("upstream.url", "wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.dial_timeout", "10s")
	v.SetDefault("audio.sample_rate", 24000)
	v.SetDefault("audio.frames_per_buffer", 480)
	v.SetDefault("audio.chunk_size", 4096)
	v.SetDefault("audio.interrupt_timeout", "500ms")
	v.SetDefault("audio.speech_threshold", 0.02)
	v.SetDefault("audio.speech_hold_frames", 2)
	v.SetDefault("client.relay_url", "ws://localhost:8081/")
	v.SetDefault("client.record", "")

	v.SetEnvPrefix("VOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("upstream.api_key", "VOICE_UPSTREAM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	if fs != nil {
		for key, flag := range map[string]string{"client.relay_url": "relay", "client.record": "record"} {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Upstream: %s\n", cfg.Mode, cfg.Port, cfg.Upstream.URL)
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.Audio.SampleRate <= 0:
		return fmt.Errorf("invalid audio.sample_rate %d", c.Audio.SampleRate)
	case c.Audio.ChunkSize <= 0:
		return fmt.Errorf("invalid audio.chunk_size %d", c.Audio.ChunkSize)
	case c.Audio.FramesPerBuffer <= 0:
		return fmt.Errorf("invalid audio.frames_per_buffer %d", c.Audio.FramesPerBuffer)
	case c.Audio.InterruptTimeout <= 0:
		return fmt.Errorf("invalid audio.interrupt_timeout %s", c.Audio.InterruptTimeout)
	}
	return nil
}

// ValidateRelay checks what the relay needs before accepting sessions.
func (c *Config) ValidateRelay() error {
	if c.Upstream.URL == "" {
		return errors.New("upstream.url is required")
	}
	if c.Upstream.APIKey == "" {
		return errors.New("upstream.api_key is required (set OPENAI_API_KEY)")
	}
	return nil
}

// MaskedKey returns the first characters of the API key for logging.
func (c *Config) MaskedKey() string {
	k := c.Upstream.APIKey
	if len(k) > 3 {
		k = k[:3]
	}
	return k + "..."
}
