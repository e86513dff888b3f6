package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jo-hoe/ecotrail/internal/backend/commands"
	"github.com/jo-hoe/ecotrail/internal/backend/commandstructure"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort             = 8080
	defaultDatabaseType     = "sqlite"
	defaultConnectionString = "photos.db"
)

// CommandConfig represents a generic command configuration
type CommandConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type Camera struct {
	Device      string `yaml:"device"`
	RearDevice  string `yaml:"rearDevice"`
	FrontDevice string `yaml:"frontDevice"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
}

type Image struct {
	JpegQuality    int `yaml:"jpegQuality"`
	ThumbnailWidth int `yaml:"thumbnailWidth"`
}

type Handles struct {
	Type    string        `yaml:"type"`
	Address string        `yaml:"address"`
	TTL     time.Duration `yaml:"ttl"`
}

type ServiceConfig struct {
	Port              int             `yaml:"port"`
	Database          Database        `yaml:"database"`
	Camera            Camera          `yaml:"camera"`
	Image             Image           `yaml:"image"`
	Handles           Handles         `yaml:"handles"`
	Timezone          string          `yaml:"timezone"`
	ThumbnailCommands []CommandConfig `yaml:"thumbnailCommands"`
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config ServiceConfig
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}
	return &config, nil
}

func (config *ServiceConfig) applyDefaults() {
	if config.Port == 0 {
		config.Port = defaultPort
	}
	if config.Database.Type == "" {
		config.Database.Type = defaultDatabaseType
	}
	if config.Database.ConnectionString == "" {
		config.Database.ConnectionString = defaultConnectionString
	}
	if config.Image.JpegQuality == 0 {
		config.Image.JpegQuality = commands.DefaultJPEGQuality
	}
	if config.Image.ThumbnailWidth == 0 {
		config.Image.ThumbnailWidth = commands.DefaultThumbnailWidth
	}
	if config.Handles.Type == "" {
		config.Handles.Type = "memory"
	}
}

func (config *ServiceConfig) validate() error {
	if config.Image.JpegQuality < 1 || config.Image.JpegQuality > 100 {
		return fmt.Errorf("image.jpegQuality must be within 1..100, got %d", config.Image.JpegQuality)
	}
	if config.Image.ThumbnailWidth < 0 {
		return fmt.Errorf("image.thumbnailWidth must be positive, got %d", config.Image.ThumbnailWidth)
	}
	if config.Handles.Type == "redis" && config.Handles.Address == "" {
		return fmt.Errorf("handles.address is required for the redis handle registry")
	}
	if _, err := config.Location(); err != nil {
		return err
	}
	if err := validateCommands(config.ThumbnailCommands); err != nil {
		return fmt.Errorf("invalid thumbnail command configuration: %w", err)
	}
	return nil
}

// Location resolves the timezone photo dates are rendered in.
func (config *ServiceConfig) Location() (*time.Location, error) {
	if config.Timezone == "" {
		return time.Local, nil
	}
	location, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", config.Timezone, err)
	}
	return location, nil
}

// CommandConfigs converts the thumbnail command list for the command registry.
func (config *ServiceConfig) CommandConfigs() []commandstructure.CommandConfig {
	configs := make([]commandstructure.CommandConfig, 0, len(config.ThumbnailCommands))
	for _, command := range config.ThumbnailCommands {
		configs = append(configs, commandstructure.CommandConfig{Name: command.Name, Params: command.Params})
	}
	return configs
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}
		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true

		if !commandstructure.DefaultRegistry.IsRegistered(cmd.Name) {
			return fmt.Errorf("unknown command at index %d: %s (available: %s)",
				i, cmd.Name, strings.Join(commandstructure.DefaultRegistry.GetRegisteredNames(), ", "))
		}
	}

	return nil
}
