package cmd

import (
	"context"
	"fmt"

	"github.com/getlawrence/cattach/internal/config"
	"github.com/spf13/cobra"
)

// Context key for configuration
type configKey struct{}

// ConfigKey is the context key the root command stores the *AppConfig under.
var ConfigKey = configKey{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cattach",
	Short: "Weave attachment directives into C sources",
	Long: `cattach reads C translation units containing #before and #after directives
and rewrites them so the directive bodies run around every matching operation
on a named variable or on any object of a named type.

Example directives:
  #after  (object*, =:) refcount_up(@after.instance);
  #before (object*, :=) refcount_down(@before.instance);`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return err
		}
		app := appConfig(cmd)
		app.Config = cfg
		app.Verbose, _ = cmd.Flags().GetBool("verbose")
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	app := NewAppConfig(config.DefaultConfig(), nil) // Logger will be created per command
	ctx := context.WithValue(context.Background(), ConfigKey, app)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("cattach {{.Version}} (commit %s, built %s)\n", GitCommit, BuildDate))

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format (text, json, yaml)")
	rootCmd.PersistentFlags().String("config", "", "config file (default .cattach.yaml in the working or home directory)")
}
