// package main is the main executable for the clwatcher cli interface.
package main

import (
	"github.com/urfave/cli/v2"

	clwatchercli "go.skia.org/clwatcher/clwatcher/go/cli"
)

func main() {
	app := &cli.App{
		Name:        "clwatcher",
		Description: "clwatcher triggers and watches \"git cl\" try jobs for the CL in the current checkout.",
		Commands:    clwatchercli.Commands(),
	}
	app.RunAndExitOnError()
}
