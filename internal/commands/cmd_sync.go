package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/devtodo/internal/core/sync"
)

type SyncCmd struct {
	flags *Flags

	// flags
	targets []string
}

// NewSyncCmd creates a new sync command
func NewSyncCmd(flags *Flags) *SyncCmd {
	return &SyncCmd{flags: flags}
}

// Register adds the sync command to the application
func (cmd *SyncCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "sync",
		Usage:     "Fetch remote issues and pull requests into local todo directories",
		UsageText: "devtodo sync [--target NAME ...]",
		Description: `Queries each configured account for the viewer's issues and pull
requests, maps them into VTODO entries, and reconciles them against the
target directories. Existing entries keep their local state: completion
marks and any extra properties are never overwritten, and entries whose
remote item no longer appears are left alone.`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "target",
				Aliases:     []string{"t"},
				Usage:       "target name to sync (repeatable, defaults to default_targets)",
				Destination: &cmd.targets,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SyncCmd) run(ctx context.Context, c *cli.Command) error {
	svc := sync.NewService(cmd.flags.Config, log.Logger)

	report, err := svc.Run(ctx, cmd.targets)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	printReport(c.Root().Writer, report)

	if report.Failed() {
		return fmt.Errorf("sync incomplete: one or more query types failed")
	}
	return nil
}

func printReport(out io.Writer, report sync.Report) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tKIND\tCREATED\tUPDATED\tUNCHANGED\tFAILED\tSTATUS")

	row := func(target, kind string, q sync.QueryReport) {
		status := "ok"
		switch {
		case q.Err != nil:
			status = "failed"
		case len(q.MapErrors) > 0:
			status = fmt.Sprintf("ok (%d skipped)", len(q.MapErrors))
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			target, kind, q.Created, q.Updated, q.Unchanged, q.Failed, status)
	}

	for _, t := range report {
		if t.Err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\t%v\n", t.Target, t.Err)
			continue
		}
		row(t.Target, "issues", t.Issues)
		row(t.Target, "pull-requests", t.PullRequests)
	}

	_ = w.Flush()

	for _, t := range report {
		for _, e := range append(t.Issues.MapErrors, t.PullRequests.MapErrors...) {
			fmt.Fprintf(os.Stderr, "warning: %v\n", e)
		}
	}
}
