// Package cli implements the subcommands of the clwatcher command line tool.
package cli

import (
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"go.skia.org/clwatcher/go/gitcl"
	"go.skia.org/clwatcher/go/skerr"
	"go.skia.org/clwatcher/go/urfavecli"
)

// flag names shared by all subcommands
const (
	cwdFlagName           = "cwd"
	authFlagName          = "auth-refresh-token-json"
	mastersConfigFlagName = "masters-config"
)

// commonCmd holds the flag values shared by every clwatcher subcommand
// and constructs the GitCL on which they all operate.
type commonCmd struct {
	cwd                  string
	authRefreshTokenJSON string
	mastersConfig        string

	// out overrides os.Stdout as the destination for command output.
	// Tests set it.
	out io.Writer
}

func (cmd *commonCmd) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        cwdFlagName,
			Value:       ".",
			Usage:       "directory of the checkout to run \"git cl\" in",
			Destination: &cmd.cwd,
		}, &cli.StringFlag{
			Name:        authFlagName,
			Value:       "",
			Usage:       "path to a refresh token JSON file to pass to \"git cl\"",
			Destination: &cmd.authRefreshTokenJSON,
		}, &cli.StringFlag{
			Name:        mastersConfigFlagName,
			Value:       "",
			Usage:       "path to a JSON5 file mapping try builders to masters",
			Destination: &cmd.mastersConfig,
		},
	}
}

// gitCL builds the GitCL described by the common flag values.
func (cmd *commonCmd) gitCL(cliCtx *cli.Context) (*gitcl.GitCL, error) {
	urfavecli.LogFlags(cliCtx)
	cl := gitcl.New(cmd.cwd, cmd.authRefreshTokenJSON, cmd.out)
	if cmd.mastersConfig != "" {
		cfg, err := gitcl.ReadTryMasterConfig(cmd.mastersConfig)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		cl.SetTryMasterConfig(*cfg)
	}
	return cl, nil
}

// stdout is where subcommands print their results.
func (cmd *commonCmd) stdout() io.Writer {
	if cmd.out != nil {
		return cmd.out
	}
	return os.Stdout
}

// Commands returns the full set of clwatcher subcommands.
func Commands() []*cli.Command {
	return []*cli.Command{
		IssueCommand(),
		TryCommand(),
		ResultsCommand(),
		WatchCommand(),
	}
}
