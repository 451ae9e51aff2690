package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses the "5s" / "1m30s" notation in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	ListenAddr       string   `yaml:"listen_addr"`
	SocketPath       string   `yaml:"socket_path"`
	WhisperModel     string   `yaml:"whisper_model"`
	Model            string   `yaml:"model"`
	DefaultLang      string   `yaml:"default_lang"`
	Earcon           string   `yaml:"earcon"`
	HistoryDB        string   `yaml:"history_db"`
	LocationEndpoint string   `yaml:"location_endpoint"`
	LocationTimeout  Duration `yaml:"location_timeout"`
	ProxyAddr        string   `yaml:"proxy_addr"`
	ArchiveDir       string   `yaml:"archive_dir"`

	// AudioFrom switches capture from the microphone to a list of audio
	// files, one per utterance, for mic-less machines and walkthroughs.
	AudioFrom []string `yaml:"audio_from"`
}

func defaults() *Config {
	return &Config{
		ListenAddr:      ":8093",
		SocketPath:      "/tmp/connectaid.sock",
		WhisperModel:    "models/ggml-base.bin",
		DefaultLang:     "en-US",
		HistoryDB:       "connectaid.db",
		LocationTimeout: Duration(5 * time.Second),
	}
}

// Load reads the YAML config at path over the defaults. A missing file is
// fine when no path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
