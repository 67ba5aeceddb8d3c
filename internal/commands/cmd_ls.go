package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/devtodo/internal/core/todo"
)

type LsCmd struct {
	flags *Flags

	// flags
	target     string
	jsonOutput bool
}

// NewLsCmd creates a new ls command
func NewLsCmd(flags *Flags) *LsCmd {
	return &LsCmd{flags: flags}
}

// Register adds the ls command to the application
func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "ls",
		Usage:       "List the entries of a sync target",
		UsageText:   "devtodo ls --target NAME [--json]",
		Description: "Displays a table of the target directory's todo entries with kind, status, due date, and summary.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "target",
				Aliases:     []string{"t"},
				Usage:       "target name to list",
				Destination: &cmd.target,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

type entryJSON struct {
	UID      string `json:"uid"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Due      string `json:"due,omitempty"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Assignee string `json:"assignee,omitempty"`
}

func (cmd *LsCmd) run(_ context.Context, c *cli.Command) error {
	name := cmd.target
	if name == "" && len(cmd.flags.Config.DefaultTargets) == 1 {
		name = cmd.flags.Config.DefaultTargets[0]
	}
	target, ok := cmd.flags.Config.Targets[name]
	if !ok {
		return fmt.Errorf("unknown target %q", name)
	}

	store := todo.NewStore(target.Directory, log.Logger)
	if err := store.Load(); err != nil {
		return fmt.Errorf("load target %q: %w", name, err)
	}

	files := store.List()
	if len(files) == 0 {
		if !cmd.jsonOutput {
			fmt.Fprintf(os.Stderr, "No entries found\n")
		}
		return nil
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		enc := json.NewEncoder(out)
		for _, f := range files {
			e := entryJSON{
				UID:     f.UID(),
				Status:  string(f.Status()),
				Summary: f.Summary(),
				URL:     f.URL(),
			}
			if kind, ok := f.Kind(); ok {
				e.Kind = string(kind)
			}
			if due, ok := f.Due(); ok {
				e.Due = due.String()
			}
			if a, ok := f.Assignee(); ok {
				e.Assignee = a.Login
			}
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("encode entry: %w", err)
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tSTATUS\tDUE\tSUMMARY")
	for _, f := range files {
		kind, _ := f.Kind()
		due := "-"
		if d, ok := f.Due(); ok {
			due = d.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", kind, f.Status(), due, f.Summary())
	}
	return w.Flush()
}
