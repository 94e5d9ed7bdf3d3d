package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/gitlabassist/internal/api"
	"github.com/gitlabassist/internal/assistant"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP chat API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides server.port)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			port := cfg.Server.Port
			if c.IsSet("port") {
				port = c.Int("port")
			}

			tokens, err := api.NewTokenService(cfg.Server.JWTSecret, cfg.Server.SessionTTL)
			if err != nil {
				return err
			}
			rt, err := newRuntime(c.Context, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			registry := assistant.NewRegistry(func(ctx context.Context, id string) (*assistant.Session, error) {
				return rt.newSession(ctx, id)
			}, cfg.Server.SessionTTL)

			log.Info().Str("repository", cfg.GitLab.Repository).Msg("starting gitlabassist API")
			return api.NewServer(port, registry, tokens).Start()
		},
	}
}
