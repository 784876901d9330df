package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/cadmod-labs/cadmod/internal/branding"
)

const (
	fileName = "config"
	fileType = "yaml"

	// ModulesDir is the directory under the home dir holding installed
	// module files.
	ModulesDir = "modules"

	// RegistryFile is the persisted installed-module registry.
	RegistryFile = "registry.json"
)

// Dir returns the path to the CadMod config directory (~/.cadmod/).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.cadmod/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// ModulesRoot returns the directory module files are installed into.
// The CADMOD_MODULES environment variable overrides the default.
func ModulesRoot() string {
	if v := os.Getenv(branding.EnvVar("MODULES")); v != "" {
		return v
	}
	return filepath.Join(Dir(), ModulesDir)
}

// RegistryPath returns the path to the registry file.
// The CADMOD_REGISTRY environment variable overrides the default.
func RegistryPath() string {
	if v := os.Getenv(branding.EnvVar("REGISTRY")); v != "" {
		return v
	}
	return filepath.Join(Dir(), RegistryFile)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment.
func Load() {
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.AutomaticEnv()

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// GetSlice returns a list-valued config key.
func GetSlice(key string) []string {
	return viper.GetStringSlice(key)
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CatalogURL returns the standard catalog location: the CADMOD_CATALOG env
// var, then the "catalog_url" config key, then the built-in default.
func CatalogURL() string {
	if v := os.Getenv(branding.EnvVar("CATALOG")); v != "" {
		return v
	}
	if v := Get("catalog_url"); v != "" {
		return v
	}
	return branding.CatalogURL()
}

// CustomSources returns the user-configured extra catalog sources
// (local paths or URLs) from the "sources" config key.
func CustomSources() []string {
	return GetSlice("sources")
}

// ReleaseMirror returns an alternate base URL for the release feed: the
// CADMOD_MIRROR env var, then the "release_mirror" config key. Empty means
// the default endpoint.
func ReleaseMirror() string {
	if v := os.Getenv(branding.EnvVar("MIRROR")); v != "" {
		return v
	}
	return Get("release_mirror")
}

// HostVersion returns the CAD host application version the manager is
// running against: the CADMOD_HOST_VERSION env var, then the
// "host_version" config key, then the build version passed in.
func HostVersion(buildVersion string) string {
	if v := os.Getenv(branding.EnvVar("HOST_VERSION")); v != "" {
		return v
	}
	if v := Get("host_version"); v != "" {
		return v
	}
	return buildVersion
}
