package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/getlawrence/cattach/internal/config"
	"github.com/getlawrence/cattach/internal/detector"
	"github.com/getlawrence/cattach/internal/logger"
	"github.com/getlawrence/cattach/internal/splice"
	"github.com/getlawrence/cattach/internal/weaver"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// AppConfig holds all the shared configuration and dependencies
type AppConfig struct {
	Config  *config.Config
	Logger  logger.Logger
	Verbose bool
}

// NewAppConfig creates a new configuration instance
func NewAppConfig(cfg *config.Config, logger logger.Logger) *AppConfig {
	return &AppConfig{
		Config: cfg,
		Logger: logger,
	}
}

func appConfig(cmd *cobra.Command) *AppConfig {
	if app, ok := cmd.Context().Value(ConfigKey).(*AppConfig); ok && app != nil {
		return app
	}
	return NewAppConfig(config.DefaultConfig(), nil)
}

func outputFormat(cmd *cobra.Command) string {
	if format, _ := cmd.Flags().GetString("output"); format != "" {
		return format
	}
	return appConfig(cmd).Config.Output.Format
}

func writeReport(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(v)
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// weaveOptions merges the loaded config with command flags.
func weaveOptions(cmd *cobra.Command, log logger.Logger) (weaver.Options, error) {
	cfg := appConfig(cmd).Config

	opts := weaver.Options{
		Splice: splice.Options{
			TempPrefix:    cfg.Weave.TempPrefix,
			TypeofKeyword: cfg.Weave.TypeofKeyword,
			Indent:        cfg.Weave.Indent,
		},
		ExtraTypes: cfg.Types.Extra,
		Workers:    cfg.Weave.Workers,
		Logger:     log,
	}
	if cmd.Flags().Lookup("workers") != nil && cmd.Flags().Changed("workers") {
		opts.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if types, _ := cmd.Flags().GetStringSlice("types"); len(types) > 0 {
		opts.ExtraTypes = append(append([]string{}, opts.ExtraTypes...), types...)
	}

	files := append([]string{}, cfg.Directives.Files...)
	if extra, _ := cmd.Flags().GetStringSlice("directives"); len(extra) > 0 {
		files = append(files, extra...)
	}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return opts, fmt.Errorf("failed to read directive file: %w", err)
		}
		opts.Headers = append(opts.Headers, weaver.Source{Path: f, Source: data})
	}
	return opts, nil
}

// unit is a discovered source with the root it was found under.
type unit struct {
	weaver.Source
	base string
}

func collectUnits(cmd *cobra.Command, args []string) ([]unit, error) {
	if len(args) == 0 {
		args = []string{"."}
	}
	exclude := appConfig(cmd).Config.Sources.ExcludePaths

	var units []unit
	seen := make(map[string]bool)
	for _, arg := range args {
		base := arg
		if info, err := os.Stat(arg); err == nil && !info.IsDir() {
			base = filepath.Dir(arg)
		}
		paths, err := detector.FindSources(arg, exclude)
		if err != nil {
			return nil, fmt.Errorf("failed to discover sources: %w", err)
		}
		for _, p := range paths {
			if seen[p] {
				continue
			}
			seen[p] = true
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("failed to read source: %w", err)
			}
			units = append(units, unit{Source: weaver.Source{Path: p, Source: data}, base: base})
		}
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("no C sources found in %v", args)
	}
	return units, nil
}

func sources(units []unit) []weaver.Source {
	out := make([]weaver.Source, 0, len(units))
	for _, u := range units {
		out = append(out, u.Source)
	}
	return out
}
