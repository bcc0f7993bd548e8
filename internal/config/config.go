package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the cattach configuration
type Config struct {
	// Code generation settings
	Weave WeaveConfig `json:"weave" yaml:"weave"`

	// Type names known without a visible declaration
	Types TypesConfig `json:"types" yaml:"types"`

	// Directive headers shared by every unit
	Directives DirectivesConfig `json:"directives" yaml:"directives"`

	// Source discovery settings
	Sources SourcesConfig `json:"sources" yaml:"sources"`

	// Output settings
	Output OutputConfig `json:"output" yaml:"output"`
}

// WeaveConfig tunes the generated code
type WeaveConfig struct {
	// Prefix of generated temporaries
	TempPrefix string `json:"temp_prefix" yaml:"temp_prefix"`

	// Keyword used to spell the type of an expression with no nameable type
	TypeofKeyword string `json:"typeof_keyword" yaml:"typeof_keyword"`

	// One indentation level; empty detects it per unit
	Indent string `json:"indent" yaml:"indent"`

	// Units woven in parallel; zero means one per CPU
	Workers int `json:"workers" yaml:"workers"`
}

// TypesConfig lists extra type names
type TypesConfig struct {
	Extra []string `json:"extra" yaml:"extra"`
}

// DirectivesConfig lists directive header files
type DirectivesConfig struct {
	Files []string `json:"files" yaml:"files"`
}

// SourcesConfig contains discovery settings
type SourcesConfig struct {
	// Paths to exclude from discovery
	ExcludePaths []string `json:"exclude_paths" yaml:"exclude_paths"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	// Default output format
	Format string `json:"format" yaml:"format"`

	// Whether to colorize output
	Color bool `json:"color" yaml:"color"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Weave: WeaveConfig{
			TempPrefix:    "__attach_",
			TypeofKeyword: "__typeof__",
		},
		Types:      TypesConfig{Extra: []string{}},
		Directives: DirectivesConfig{Files: []string{}},
		Sources: SourcesConfig{
			ExcludePaths: []string{
				".git",
				"vendor",
				"third_party",
				"build",
				"dist",
			},
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

// LoadConfig loads configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if isYAML(configPath) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves configuration to a file
func SaveConfig(config *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(configPath) {
		data, err = yaml.Marshal(config)
	} else {
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

var candidates = []string{
	".cattach.yaml",
	".cattach.yml",
	".cattach.json",
}

// findConfigFile looks for config files in the working directory, then home
func findConfigFile() string {
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		for _, candidate := range candidates {
			path := filepath.Join(homeDir, candidate)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}

// GetConfigPath returns the config file path to use
func GetConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if found := findConfigFile(); found != "" {
		return found
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(homeDir, ".cattach.yaml")
	}

	return ".cattach.yaml"
}
