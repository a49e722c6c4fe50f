package cli

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the resolved CLI configuration
type Settings struct {
	BaseURL string
	Timeout time.Duration
	UserID  string
	Format  string
}

// defaultConfigPath returns ~/.config/petfinder/cli.toml
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cli.toml"
	}
	return filepath.Join(home, ".config", "petfinder", "cli.toml")
}

// LoadSettings reads the config file (if any) and PETFINDER_* environment
// overrides. A missing config file is not an error.
func LoadSettings(v *viper.Viper, configPath string) (Settings, error) {
	v.SetDefault("api.base_url", "http://localhost:8787")
	v.SetDefault("api.timeout", 30)
	v.SetDefault("output.format", "text")
	v.SetDefault("user_id", "")

	v.SetEnvPrefix("petfinder")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		configPath = defaultConfigPath()
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			return Settings{}, err
		}
	}

	return Settings{
		BaseURL: strings.TrimRight(v.GetString("api.base_url"), "/"),
		Timeout: time.Duration(v.GetInt("api.timeout")) * time.Second,
		UserID:  v.GetString("user_id"),
		Format:  v.GetString("output.format"),
	}, nil
}
