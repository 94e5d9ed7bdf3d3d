package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/gitlabassist/cmd"
)

const (
	version = "0.1.0"
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "gitlabassist",
		Usage:   "Run GitLab repository actions from plain-language instructions",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (default: ./gitlabassist.toml, then ~/.gitlabassist.toml)",
			},
			// -v is taken by --version.
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"V"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			cmd.ChatCommand(),
			cmd.DoCommand(),
			cmd.TranslateCommand(),
			cmd.ServeCommand(),
			cmd.ConfigCommand(),
		},
	}
}

func main() {
	// A missing .env is fine; variables may come from the environment.
	_ = godotenv.Load()

	err := newApp().Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
