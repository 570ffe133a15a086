package ui

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/kirsle/configdir"
)

const settingsFilename = "settings.toml"

var settingsDir = sync.OnceValue(func() string {
	dir := configdir.LocalConfig("gbx")
	_ = configdir.MakePath(dir)
	return dir
})

// LoadSettingsOrDefault reads Config from the OS config directory, falling
// back to Defaults if no file exists or it fails to parse.
func LoadSettingsOrDefault() Config {
	var cfg Config
	if _, err := toml.DecodeFile(filepath.Join(settingsDir(), settingsFilename), &cfg); err != nil {
		cfg = Config{}
	}
	cfg.Defaults()
	return cfg
}

// SaveSettings persists cfg to the OS config directory.
func SaveSettings(cfg Config) error {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(settingsDir(), settingsFilename), buf, 0o644)
}
