package cmd

import (
	"fmt"

	"github.com/getlawrence/cattach/internal/logger"
	"github.com/getlawrence/cattach/internal/ui"
	"github.com/getlawrence/cattach/internal/weaver"
	"github.com/spf13/cobra"
)

// sitesCmd represents the sites command
var sitesCmd = &cobra.Command{
	Use:   "sites [paths...]",
	Short: "List operation sites and the directives that match them",
	Long: `Sites scans each C unit and prints every operation site with its kind, the
instance it acts on, the instance's type, its location and the directives
that would fire there. Nothing is written.`,
	RunE: runSites,
}

func init() {
	rootCmd.AddCommand(sitesCmd)

	sitesCmd.Flags().StringSliceP("directives", "d", []string{}, "directive files applied to every unit")
	sitesCmd.Flags().StringSlice("types", []string{}, "type names known without a visible declaration")
	sitesCmd.Flags().Bool("matched", false, "only list sites with at least one matching directive")
	sitesCmd.Flags().Bool("no-color", false, "disable colored output")
}

func runSites(cmd *cobra.Command, args []string) error {
	matched, _ := cmd.Flags().GetBool("matched")
	noColor, _ := cmd.Flags().GetBool("no-color")
	app := appConfig(cmd)

	units, err := collectUnits(cmd, args)
	if err != nil {
		return err
	}
	log := app.Logger
	if app.Verbose {
		log = &logger.StdoutLogger{W: cmd.ErrOrStderr()}
	}
	opts, err := weaveOptions(cmd, log)
	if err != nil {
		return err
	}

	results, err := weaver.TransformAll(cmd.Context(), sources(units), opts)
	if err != nil {
		return err
	}
	if matched {
		for _, r := range results {
			kept := r.Sites[:0]
			for _, s := range r.Sites {
				if len(s.Directives) > 0 {
					kept = append(kept, s)
				}
			}
			r.Sites = kept
		}
	}

	switch format := outputFormat(cmd); format {
	case "json", "yaml":
		return writeReport(cmd.OutOrStdout(), format, results)
	case "text":
		color := app.Config.Output.Color && !noColor && logger.IsInteractive()
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderSites(results, color))
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
