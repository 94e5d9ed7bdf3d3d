package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/gitlabassist/internal/assistant"
)

// DoCommand returns the command that runs a single instruction
func DoCommand() *cli.Command {
	return &cli.Command{
		Name:      "do",
		Usage:     "Run one instruction against the repository",
		ArgsUsage: "INSTRUCTION",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Do not ask before writes",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up after this long",
				Value: 2 * time.Minute,
			},
		},
		Action: runDo,
	}
}

func runDo(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: INSTRUCTION")
	}
	instruction := strings.Join(c.Args().Slice(), " ")

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	term := newTerminal(os.Stdin, os.Stdout)
	var opts []assistant.SessionOption
	if !c.Bool("yes") {
		opts = append(opts, assistant.WithConfirm(term.confirm))
	}
	session, err := rt.newSession(ctx, uuid.NewString(), opts...)
	if err != nil {
		return err
	}
	defer session.Close()

	res, err := session.HandleTurn(ctx, instruction)
	if err != nil {
		return err
	}
	term.printResult(res)
	if !res.Succeeded() {
		return cli.Exit("", 1)
	}
	return nil
}
