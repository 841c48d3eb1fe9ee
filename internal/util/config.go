package util

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Configuration carries the host-level settings of one braid process.
// Build metadata is injected by the linker; the rest comes from the
// config file and command-line flags, flags winning.
type Configuration struct {
	Version   string `toml:"-"`
	BuildDate string `toml:"-"`
	Commit    string `toml:"-"`

	RootPath  string `toml:"root-path"`
	BraidHome string `toml:"-"`
	LogLevel  string `toml:"log-level"`
	LogFile   string `toml:"log-file"`
}

const configFileName = "braid.toml"

// ConfigPath returns the config file the process should read: an explicit
// path if given, else braid.toml next to the working directory, else
// $BRAID_HOME/braid.toml. Empty when none exists.
func ConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName
	}
	if home := os.Getenv("BRAID_HOME"); home != "" {
		path := filepath.Join(home, configFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadConfiguration fills cfg from a TOML file. A missing file is not an
// error; the defaults stand.
func LoadConfiguration(path string, cfg *Configuration) error {
	if path == "" {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return err
	}
	return nil
}
