package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// issueCmd holds the flag values for the `issue` subcommand.
type issueCmd struct {
	commonCmd
}

// IssueCommand returns a [*cli.Command] which prints the issue number of
// the current CL.
func IssueCommand() *cli.Command {
	cmd := &issueCmd{}
	return &cli.Command{
		Name:        "issue",
		Description: "issue prints the issue number of the current CL, or None if no issue is attached.",
		Usage:       "clwatcher issue",
		Flags:       cmd.flags(),
		Action:      cmd.action,
	}
}

func (cmd *issueCmd) action(cliCtx *cli.Context) error {
	cl, err := cmd.gitCL(cliCtx)
	if err != nil {
		return err
	}
	issue, err := cl.GetIssueNumber(cliCtx.Context)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.stdout(), issue)
	return nil
}
