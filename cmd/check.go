package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm-areas-go/internal/area"
	"github.com/wegman-software/osm-areas-go/internal/pipeline"
)

// maxListed caps the failures printed by check
const maxListed = 50

var checkCmd = &cobra.Command{
	Use:   "check <input.osm.pbf>...",
	Short: "Assemble areas without writing them and report every failure",
	Long: `Run the full assembly but discard the areas. Relations that stay
incomplete and objects whose geometry cannot be assembled are listed.
The command exits non-zero when anything failed.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	styleCfg, err := prepare(cmd, args)
	if err != nil {
		exitWithError("invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator := pipeline.NewCoordinator(cfg, styleCfg, nil)
	stats, err := coordinator.Run(ctx)
	if err != nil {
		exitWithError("check failed", err)
	}

	failures := coordinator.Report().Failures()
	printCheck(os.Stdout, stats, coordinator.Report(), failures)
	if len(failures) > 0 {
		os.Exit(1)
	}
}

func printCheck(w io.Writer, stats *pipeline.RunStats, report *area.Report, failures []area.Failure) {
	t := stats.Totals()
	fmt.Fprintf(w, "areas: %d (relations %d, ways %d, inner %d)\n",
		t.Emitted, t.Builder.RelationAreas, t.Builder.WayAreas, t.Builder.InnerAreas)
	fmt.Fprintf(w, "failed: %d\n", len(failures))

	summary := report.Summary()
	reasons := make([]string, 0, len(summary))
	for r := range summary {
		reasons = append(reasons, r)
	}
	slices.Sort(reasons)
	for _, r := range reasons {
		fmt.Fprintf(w, "  %-22s %d\n", r, summary[r])
	}

	warnings := report.Warnings()
	names := make([]string, 0, len(warnings))
	for n := range warnings {
		names = append(names, n)
	}
	slices.Sort(names)
	if len(names) > 0 {
		fmt.Fprintln(w, "warnings:")
	}
	for _, n := range names {
		fmt.Fprintf(w, "  %-22s %d\n", n, warnings[n])
	}

	for i, f := range failures {
		if i == maxListed {
			fmt.Fprintf(w, "... %d more\n", len(failures)-maxListed)
			break
		}
		fmt.Fprintf(w, "%s %d: %s", f.Kind, f.ID, f.Reason)
		if f.Detail != "" {
			fmt.Fprintf(w, " (%s)", f.Detail)
		}
		fmt.Fprintln(w)
	}
}
