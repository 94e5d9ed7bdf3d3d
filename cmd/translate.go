package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/gitlabassist/internal/config"
	"github.com/gitlabassist/internal/intent"
	"github.com/gitlabassist/internal/report"
)

// TranslateCommand returns the command that only translates an instruction
func TranslateCommand() *cli.Command {
	return &cli.Command{
		Name:      "translate",
		Usage:     "Print the action an instruction translates to, without running it",
		ArgsUsage: "INSTRUCTION",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rules",
				Usage: "Use the rule classifier instead of the configured model",
			},
		},
		Action: runTranslate,
	}
}

func runTranslate(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: INSTRUCTION")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.Bool("rules") {
		cfg.AI.Provider = config.ProviderRules
	}

	schema, err := intent.NewSchema(cfg.GitLab.DefaultBranch)
	if err != nil {
		return err
	}
	model, _, err := newModels(c.Context, cfg)
	if err != nil {
		return err
	}

	action, err := classifier(schema, model, nil).Classify(c.Context, strings.Join(c.Args().Slice(), " "), nil)
	if err != nil {
		if f, ok := intent.AsFailure(err); ok {
			fmt.Println(f.Clarification())
			return cli.Exit("", 1)
		}
		return err
	}
	fmt.Println(report.ActionJSON(action))
	return nil
}
