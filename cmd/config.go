package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/gitlabassist/internal/aiconnectors"
	"github.com/gitlabassist/internal/config"
)

// ConfigCommand returns the config command
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Initialize a new configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
						Value:   "gitlabassist.toml",
					},
				},
				Action: runConfigInit,
			},
			{
				Name:  "validate",
				Usage: "Validate the configuration",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "ping",
						Usage: "Also check that the model provider answers",
					},
				},
				Action: runConfigValidate,
			},
		},
	}
}

func runConfigInit(c *cli.Context) error {
	outputPath := c.String("output")

	if err := config.InitConfig(outputPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Created configuration file at %s\n", outputPath)
	return nil
}

func runConfigValidate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	PrintConfigCheck(os.Stdout, CheckConfig(cfg))
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Bool("ping") && cfg.UsesModel() {
		err := aiconnectors.Ping(c.Context, aiconnectors.Options{
			Provider: aiconnectors.Provider(cfg.AI.Provider),
			APIKey:   cfg.AI.APIKey,
			BaseURL:  cfg.AI.BaseURL,
			Model:    cfg.AI.Model,
		})
		if err != nil {
			return fmt.Errorf("model provider check failed: %w", err)
		}
		fmt.Printf("%s answered\n", cfg.AI.Provider)
	}

	fmt.Println("Configuration is valid")
	return nil
}
