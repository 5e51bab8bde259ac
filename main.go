package main

import (
	"fmt"
	"os"

	"github.com/gridhome/energy-supervisor/clicommand"
	"github.com/gridhome/energy-supervisor/version"
	"github.com/urfave/cli"
)

var AppHelpTemplate = `Usage:

  {{.Name}} <command> [options...]

Available commands are:

  {{range .Commands}}{{.Name}}{{with .ShortName}}, {{.}}{{end}}{{ "\t" }}{{.Usage}}
  {{end}}
Use "{{.Name}} <command> --help" for more information about a command.

`

func main() {
	cli.AppHelpTemplate = AppHelpTemplate

	app := cli.NewApp()
	app.Name = "energy-supervisor"
	app.Version = version.Version()
	app.Commands = []cli.Command{
		clicommand.StartCommand,
		clicommand.PreflightCommand,
		{
			Name:  "version",
			Usage: "Prints the version and build",
			Action: func(c *cli.Context) error {
				fmt.Fprintln(c.App.Writer, version.FullVersion())
				return nil
			},
		},
	}

	// When no sub command is used
	app.Action = func(c *cli.Context) error {
		cli.ShowAppHelp(c)
		os.Exit(1)
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
