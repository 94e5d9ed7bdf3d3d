package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/gitlabassist/internal/assistant"
	"github.com/gitlabassist/internal/report"
	"github.com/gitlabassist/pkg/models"
)

// ChatCommand returns the interactive chat command
func ChatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Talk to the assistant about the configured repository",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Do not ask before writes",
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "Resume the stored conversation with this `ID`",
				Value: "cli",
			},
		},
		Action: runChat,
	}
}

func runChat(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

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
	session, err := rt.newSession(ctx, c.String("session"), opts...)
	if err != nil {
		return err
	}
	defer session.Close()
	if err := session.Load(ctx); err != nil {
		return fmt.Errorf("failed to restore conversation: %w", err)
	}

	fmt.Fprintf(term.out, "Connected to %s. Type /quit to leave.\n", cfg.GitLab.Repository)
	return term.loop(ctx, session)
}

// terminal is the line-based chat surface.
type terminal struct {
	in  *bufio.Scanner
	out io.Writer
}

func newTerminal(in io.Reader, out io.Writer) *terminal {
	return &terminal{in: bufio.NewScanner(in), out: out}
}

func (t *terminal) readLine(prompt string) (string, bool) {
	fmt.Fprint(t.out, prompt)
	if !t.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(t.in.Text()), true
}

func (t *terminal) confirm(_ context.Context, action *models.CanonicalAction) (bool, error) {
	fmt.Fprintf(t.out, "About to run:\n%s\n", report.ActionJSON(action))
	answer, ok := t.readLine("Proceed? [y/N] ")
	if !ok {
		return false, io.ErrUnexpectedEOF
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// loop reads instructions until EOF, /quit or cancellation.
func (t *terminal) loop(ctx context.Context, session *assistant.Session) error {
	for {
		line, ok := t.readLine("> ")
		if !ok {
			return t.in.Err()
		}
		if line == "" {
			continue
		}

		var (
			res *assistant.TurnResult
			err error
		)
		switch line {
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := session.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(t.out, "Conversation cleared.")
			continue
		case "/history":
			t.printHistory(session.History())
			continue
		case "/again":
			res, err = session.Again(ctx, false)
		case "/again!":
			res, err = session.Again(ctx, true)
		default:
			res, err = session.HandleTurn(ctx, line)
		}
		if err != nil {
			return err
		}
		t.printResult(res)
	}
}

func (t *terminal) printHistory(prompts []string) {
	if len(prompts) == 0 {
		fmt.Fprintln(t.out, "No prompts yet.")
		return
	}
	for i, p := range prompts {
		fmt.Fprintf(t.out, "%d. %s\n", i+1, p)
	}
}

func (t *terminal) printResult(res *assistant.TurnResult) {
	if res.Action != nil {
		fmt.Fprintln(t.out, report.ActionJSON(res.Action))
	}
	fmt.Fprintln(t.out, res.Text)
}
