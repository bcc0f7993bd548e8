package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/getlawrence/cattach/internal/emitter"
	"github.com/getlawrence/cattach/internal/logger"
	"github.com/getlawrence/cattach/internal/ui"
	"github.com/getlawrence/cattach/internal/weaver"
	"github.com/spf13/cobra"
)

// weaveCmd represents the weave command
var weaveCmd = &cobra.Command{
	Use:   "weave [paths...]",
	Short: "Inject directive bodies around matching operations",
	Long: `Weave parses every C unit found under the given files or directories (or the
current directory), collects its #before/#after directives together with any
shared directive files, and rewrites the unit so each body runs around the
operations it targets. Directive lines are removed from the output.

Example usage:
  cattach weave list.c                       # print the woven unit
  cattach weave src --out-dir build/woven    # weave a tree into another directory
  cattach weave src --in-place               # rewrite sources, keeping .backup copies
  cattach weave src -d hooks.h --dry-run     # only report what would happen`,
	RunE: runWeave,
}

func init() {
	rootCmd.AddCommand(weaveCmd)

	weaveCmd.Flags().String("out-dir", "", "write woven units under this directory, mirroring the source layout")
	weaveCmd.Flags().Bool("in-place", false, "overwrite sources, keeping a .backup copy of each")
	weaveCmd.Flags().StringSliceP("directives", "d", []string{}, "directive files applied to every unit")
	weaveCmd.Flags().StringSlice("types", []string{}, "type names known without a visible declaration")
	weaveCmd.Flags().Bool("dry-run", false, "weave and report without writing anything")
	weaveCmd.Flags().IntP("workers", "j", 0, "units woven in parallel (default one per CPU)")
	weaveCmd.Flags().Bool("no-color", false, "disable colored output")
}

func runWeave(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("out-dir")
	inPlace, _ := cmd.Flags().GetBool("in-place")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noColor, _ := cmd.Flags().GetBool("no-color")
	format := outputFormat(cmd)
	app := appConfig(cmd)

	switch format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
	if outDir != "" && inPlace {
		return fmt.Errorf("--out-dir and --in-place are mutually exclusive")
	}

	units, err := collectUnits(cmd, args)
	if err != nil {
		return err
	}
	toStdout := outDir == "" && !inPlace && !dryRun
	if toStdout && format == "text" && len(units) > 1 {
		return fmt.Errorf("%d units found: use --out-dir, --in-place or --dry-run", len(units))
	}

	// Spinner only when nothing else is being written to the terminal.
	useSpinner := logger.IsInteractive() && !toStdout && format == "text"
	log := app.Logger
	switch {
	case useSpinner:
		log = ui.Logger{}
	case app.Verbose:
		log = &logger.StdoutLogger{W: os.Stderr}
	}

	opts, err := weaveOptions(cmd, log)
	if err != nil {
		return err
	}

	var results []*weaver.Result
	run := func(ctx context.Context) error {
		var e error
		results, e = weaver.TransformAll(ctx, sources(units), opts)
		return e
	}
	if useSpinner {
		err = ui.RunSpinner(cmd.Context(), fmt.Sprintf("Weaving %d units...", len(units)), run)
	} else {
		err = run(cmd.Context())
	}
	if err != nil {
		return err
	}

	var written []string
	if !dryRun {
		for i, r := range results {
			if r.Failed() {
				continue
			}
			switch {
			case inPlace:
				if _, err := emitter.WriteFile(r.Path, units[i].Source.Source, r.Output, true); err != nil {
					return err
				}
				written = append(written, r.Path)
			case outDir != "":
				rel, err := filepath.Rel(units[i].base, r.Path)
				if err != nil {
					rel = filepath.Base(r.Path)
				}
				dest := filepath.Join(outDir, rel)
				if _, err := emitter.WriteFile(dest, nil, r.Output, false); err != nil {
					return err
				}
				written = append(written, dest)
			case format == "text":
				if _, err := cmd.OutOrStdout().Write(r.Output); err != nil {
					return err
				}
			}
		}
	}

	switch format {
	case "json", "yaml":
		if err := writeReport(cmd.OutOrStdout(), format, weaveReport{Units: results, Written: written}); err != nil {
			return err
		}
	default:
		color := app.Config.Output.Color && !noColor && logger.IsInteractive()
		fmt.Fprint(cmd.ErrOrStderr(), ui.RenderDiagnostics(results, color))
		if app.Verbose {
			for _, w := range written {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", w)
			}
		}
	}

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d units failed", failed, len(results))
	}
	return nil
}

type weaveReport struct {
	Units   []*weaver.Result `json:"units" yaml:"units"`
	Written []string         `json:"written,omitempty" yaml:"written,omitempty"`
}
