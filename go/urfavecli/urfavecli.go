// Package urfavecli contains utilities for working with the
// github.com/urfave/cli/v2 module.
package urfavecli

import (
	cli "github.com/urfave/cli/v2"

	"go.skia.org/clwatcher/go/sklog"
)

// LogFlags logs the name and value of every flag of the current command, app
// flags first. Call this at the top of a command's Action so that the flag
// values in effect are recorded alongside whatever the command logs.
func LogFlags(ctx *cli.Context) {
	if ctx.App != nil {
		for _, flag := range ctx.App.Flags {
			name := flag.Names()[0]
			sklog.Infof("Flags: --%s=%v", name, ctx.Value(name))
		}
	}
	if ctx.Command != nil {
		for _, flag := range ctx.Command.Flags {
			name := flag.Names()[0]
			sklog.Infof("Flags: --%s=%v", name, ctx.Value(name))
		}
	}
}
