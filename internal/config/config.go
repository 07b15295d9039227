package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type SPI struct {
	Dev      string `yaml:"dev"`       // e.g. /dev/spidev0.0
	SpeedKHz int    `yaml:"speed_khz"` // e.g. 2500
}

type Config struct {
	Driver     string  `yaml:"driver"` // "spi" | "fake"
	FPS        int     `yaml:"fps"`
	BPM        float64 `yaml:"bpm"`
	Brightness float64 `yaml:"brightness"` // 0..1 scaling factor
	Addr       string  `yaml:"addr"`

	PlaylistDir     string `yaml:"playlist_dir"`
	DefaultPlaylist string `yaml:"default_playlist"` // file loaded into the default playlist

	SPI SPI `yaml:"spi,omitempty"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
