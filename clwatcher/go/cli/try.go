package cli

import (
	"github.com/urfave/cli/v2"
)

const builderFlagName = "builder"

// tryCmd holds the flag values for the `try` subcommand.
type tryCmd struct {
	commonCmd
	builders cli.StringSlice
}

// TryCommand returns a [*cli.Command] which triggers try jobs on the
// given builders for the current CL.
func TryCommand() *cli.Command {
	cmd := &tryCmd{}
	return &cli.Command{
		Name:        "try",
		Description: "try triggers try jobs on the given builders for the current CL.",
		Usage:       "clwatcher try -b <builder> [-b <builder> ...]",
		Flags:       cmd.flags(),
		Action:      cmd.action,
	}
}

func (cmd *tryCmd) flags() []cli.Flag {
	fl := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        builderFlagName,
			Aliases:     []string{"b"},
			Usage:       "try builder to trigger; repeat for multiple builders",
			Required:    true,
			Destination: &cmd.builders,
		},
	}
	return append(fl, cmd.commonCmd.flags()...)
}

func (cmd *tryCmd) action(cliCtx *cli.Context) error {
	cl, err := cmd.gitCL(cliCtx)
	if err != nil {
		return err
	}
	return cl.TriggerTryJobs(cliCtx.Context, cmd.builders.Value())
}
