package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/spf13/cobra"
)

const (
	BaseDirName    = ".config/warden"
	ConfigFileName = "config.hcl"
	EventsDBName   = "events.db"
)

// Config is the global configuration instance, populated by InitializeConfig
// before any command runs.
var Config *Configuration

// OrbitConfig holds the settings for the auxiliary runner process.
type OrbitConfig struct {
	URL        string // Remote endpoint the runner connects to
	AuthURL    string // Optional authorization service URL
	RunnerName string // Optional display name registered with the endpoint
}

// Configuration represents the complete warden configuration.
type Configuration struct {
	ConfigPath  string      // Directory containing config files and state
	Verbose     int         // Verbosity level
	RemoteHost  string      // host[:port] the daemon listen port is derived from
	RemoteToken string      // Daemon auth token; the OS keyring takes precedence
	DataDir     string      // Data directory handed to spawned processes
	Orbit       OrbitConfig // Runner settings
}

// HCL parsing structs

type hclConfig struct {
	Verbose     int       `hcl:"verbose,optional"`
	RemoteHost  string    `hcl:"remote_host,optional"`
	RemoteToken string    `hcl:"remote_token,optional"`
	DataDir     string    `hcl:"data_dir,optional"`
	Orbit       *hclOrbit `hcl:"orbit,block"`
}

type hclOrbit struct {
	URL        string `hcl:"url,optional"`
	AuthURL    string `hcl:"auth_url,optional"`
	RunnerName string `hcl:"runner_name,optional"`
}

// LoadConfig loads the HCL configuration file and returns a Configuration
// struct.
func LoadConfig(filename string) (*Configuration, error) {
	var hclCfg hclConfig

	if err := hclsimple.DecodeFile(filename, nil, &hclCfg); err != nil {
		return nil, fmt.Errorf("failed to parse HCL config: %w", err)
	}

	cfg := &Configuration{
		Verbose:     hclCfg.Verbose,
		RemoteHost:  hclCfg.RemoteHost,
		RemoteToken: hclCfg.RemoteToken,
		DataDir:     hclCfg.DataDir,
	}
	if hclCfg.Orbit != nil {
		cfg.Orbit = OrbitConfig{
			URL:        hclCfg.Orbit.URL,
			AuthURL:    hclCfg.Orbit.AuthURL,
			RunnerName: hclCfg.Orbit.RunnerName,
		}
	}

	return cfg, nil
}

// GetDefaultConfig returns a Configuration with default values.
func GetDefaultConfig() *Configuration {
	return &Configuration{}
}

// ConfigExists checks if a config file exists.
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return err == nil
}

// GetConfigFilePath returns the path of the HCL config file.
func GetConfigFilePath() string {
	return filepath.Join(Config.ConfigPath, ConfigFileName)
}

// GetEventsDBPath returns the path of the lifecycle event database.
func GetEventsDBPath() string {
	return filepath.Join(Config.ConfigPath, EventsDBName)
}

// GetDataDir returns the configured data directory, falling back to the
// config directory itself.
func GetDataDir() string {
	if Config.DataDir != "" {
		return Config.DataDir
	}
	return Config.ConfigPath
}

// InitializeConfig loads the configuration for a cobra command invocation.
// Global flags override values from the config file.
func InitializeConfig(cmd *cobra.Command) error {
	configPath, err := cmd.Flags().GetString("config-path")
	if err != nil {
		return fmt.Errorf("unable to determine config path: %w", err)
	}

	configFile := filepath.Join(configPath, ConfigFileName)
	if ConfigExists(configFile) {
		Config, err = LoadConfig(configFile)
		if err != nil {
			return err
		}
	} else {
		Config = GetDefaultConfig()
	}
	Config.ConfigPath = configPath

	if verbose, err := cmd.Flags().GetCount("verbose"); err == nil && verbose > 0 {
		Config.Verbose = verbose
	}

	return nil
}
