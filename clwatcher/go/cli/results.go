package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"go.skia.org/clwatcher/go/gitcl"
)

const allFlagName = "all"

// resultsCmd holds the flag values for the `results` subcommand.
type resultsCmd struct {
	commonCmd
	builders cli.StringSlice
	all      bool
}

// ResultsCommand returns a [*cli.Command] which displays the state of the
// current CL's try jobs.
func ResultsCommand() *cli.Command {
	cmd := &resultsCmd{}
	return &cli.Command{
		Name:        "results",
		Description: "results shows the state of the current CL's try jobs and exits non-zero if any failed.",
		Usage:       "clwatcher results [-b <builder> ...] [--all]",
		Flags:       cmd.flags(),
		Action:      cmd.action,
	}
}

func (cmd *resultsCmd) flags() []cli.Flag {
	fl := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        builderFlagName,
			Aliases:     []string{"b"},
			Usage:       "only show results for this builder; repeat for multiple builders",
			Destination: &cmd.builders,
		}, &cli.BoolFlag{
			Name:        allFlagName,
			Usage:       "show every try job attempt instead of the latest per builder",
			Destination: &cmd.all,
		},
	}
	return append(fl, cmd.commonCmd.flags()...)
}

func (cmd *resultsCmd) action(cliCtx *cli.Context) error {
	cl, err := cmd.gitCL(cliCtx)
	if err != nil {
		return err
	}
	var results gitcl.TryJobResults
	if cmd.all {
		results, err = cl.TryJobResults(cliCtx.Context, cmd.builders.Value())
	} else {
		results, err = cl.LatestTryJobs(cliCtx.Context, cmd.builders.Value())
	}
	if err != nil {
		return err
	}
	writeResultsTable(cmd.stdout(), results)
	if gitcl.SomeFailed(results) {
		return cli.Exit("Some try jobs failed.", 1)
	}
	return nil
}

// writeResultsTable renders try job results to w, sorted by builder.
func writeResultsTable(w io.Writer, results gitcl.TryJobResults) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No try jobs found.")
		return
	}
	builds := make([]gitcl.Build, 0, len(results))
	for build := range results {
		builds = append(builds, build)
	}
	sort.Slice(builds, func(i, j int) bool {
		if builds[i].Builder != builds[j].Builder {
			return builds[i].Builder < builds[j].Builder
		}
		if builds[i].Number != builds[j].Number {
			return builds[i].Number < builds[j].Number
		}
		return builds[i].TaskID < builds[j].TaskID
	})
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Builder", "Build", "Status", "Result"})
	for _, build := range builds {
		status := results[build]
		table.Append([]string{build.Builder, buildLabel(build), status.Status, status.Result})
	}
	table.Render()
}

// buildLabel formats the build number or task id for display.
func buildLabel(build gitcl.Build) string {
	if build.Number != 0 {
		return strconv.FormatInt(build.Number, 10)
	}
	if build.TaskID != "" {
		return build.TaskID
	}
	return "-"
}
