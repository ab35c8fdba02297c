package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/hako/durafmt"
	"github.com/urfave/cli/v2"

	"go.skia.org/clwatcher/go/gitcl"
	"go.skia.org/clwatcher/go/now"
)

// flag names
const (
	pollFlagName    = "poll"
	timeoutFlagName = "timeout"
)

// watchCmd holds the flag values shared by the `watch` subcommands, which
// poll the current CL until it reaches a terminal state.
type watchCmd struct {
	commonCmd
	poll    time.Duration
	timeout time.Duration
}

// WatchCommand returns a [*cli.Command] which polls the current CL until
// its try jobs finish or it is closed.
func WatchCommand() *cli.Command {
	cmd := &watchCmd{}
	return &cli.Command{
		Name:        "watch",
		Description: "watch polls the current CL until it reaches a terminal state.",
		Usage:       "clwatcher watch <try-jobs|closed>",
		Subcommands: []*cli.Command{
			{
				Name:        "try-jobs",
				Description: "try-jobs waits until every try job for the current CL has finished, or the CL is closed.",
				Usage:       "clwatcher watch try-jobs [--poll <duration>] [--timeout <duration>]",
				Flags:       cmd.flags(gitcl.DefaultTryJobPollInterval, gitcl.DefaultTryJobTimeout),
				Action:      cmd.tryJobsAction,
			},
			{
				Name:        "closed",
				Description: "closed waits until the current CL is closed.",
				Usage:       "clwatcher watch closed [--poll <duration>] [--timeout <duration>]",
				Flags:       cmd.flags(gitcl.DefaultClosedPollInterval, gitcl.DefaultClosedTimeout),
				Action:      cmd.closedAction,
			},
		},
	}
}

func (cmd *watchCmd) flags(defaultPoll, defaultTimeout time.Duration) []cli.Flag {
	fl := []cli.Flag{
		&cli.DurationFlag{
			Name:        pollFlagName,
			Value:       defaultPoll,
			Usage:       "time to wait between polls (eg. 10m)",
			Destination: &cmd.poll,
		}, &cli.DurationFlag{
			Name:        timeoutFlagName,
			Value:       defaultTimeout,
			Usage:       "total time to wait before giving up (eg. 2h)",
			Destination: &cmd.timeout,
		},
	}
	return append(fl, cmd.commonCmd.flags()...)
}

func (cmd *watchCmd) tryJobsAction(cliCtx *cli.Context) error {
	cl, err := cmd.gitCL(cliCtx)
	if err != nil {
		return err
	}
	ctx := cliCtx.Context
	start := now.Now(ctx)
	status, err := cl.WaitForTryJobs(ctx, cmd.poll, cmd.timeout)
	if err != nil {
		return err
	}
	waited := elapsed(ctx, start)
	if status == nil {
		return cli.Exit(fmt.Sprintf("Gave up waiting for try jobs after %s.", waited), 1)
	}
	writeResultsTable(cmd.stdout(), status.TryJobResults)
	if status.Status == gitcl.CLStatusClosed {
		fmt.Fprintf(cmd.stdout(), "CL was closed after %s.\n", waited)
		return nil
	}
	if gitcl.SomeFailed(status.TryJobResults) {
		return cli.Exit(fmt.Sprintf("Try jobs finished after %s; some failed.", waited), 1)
	}
	if gitcl.AllSuccess(status.TryJobResults) {
		fmt.Fprintf(cmd.stdout(), "All try jobs succeeded after %s.\n", waited)
	} else {
		fmt.Fprintf(cmd.stdout(), "Try jobs finished after %s.\n", waited)
	}
	return nil
}

func (cmd *watchCmd) closedAction(cliCtx *cli.Context) error {
	cl, err := cmd.gitCL(cliCtx)
	if err != nil {
		return err
	}
	ctx := cliCtx.Context
	start := now.Now(ctx)
	status, err := cl.WaitForClosedStatus(ctx, cmd.poll, cmd.timeout)
	if err != nil {
		return err
	}
	waited := elapsed(ctx, start)
	if status == "" {
		return cli.Exit(fmt.Sprintf("Gave up waiting for the CL to close after %s.", waited), 1)
	}
	fmt.Fprintf(cmd.stdout(), "CL was closed after %s.\n", waited)
	return nil
}

// elapsed returns a human-readable rendering of the time since start.
func elapsed(ctx context.Context, start time.Time) string {
	return durafmt.Parse(now.Now(ctx).Sub(start)).LimitFirstN(2).String()
}
