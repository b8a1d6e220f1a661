package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"timetracker/internal/core"
	"timetracker/internal/timer"
)

func newStartCmd(opts *rootOptions) *cobra.Command {
	var taskID, projectID, taskName, notes string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start tracking a task, stopping whatever is running",
		Example: `  ttrack start --task 3f0c...
  ttrack start --project 9a1b... --task-name "Code review" --notes "PR 42"`,
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			ctx := cmd.Context()
			if taskID == "" {
				if projectID == "" || taskName == "" {
					return errors.New("pass --task, or --project together with --task-name")
				}
				task, err := a.catalog.EnsureTask(ctx, projectID, taskName)
				if err != nil {
					return err
				}
				taskID = task.ID
			}
			prev, wasRunning := a.timer.Active()
			entry, err := a.timer.Start(ctx, taskID, notes)
			if err != nil {
				return err
			}
			if wasRunning {
				a.printf("Stopped %s\n", prev.ID)
			}
			detail, err := a.entries.Get(ctx, entry.ID)
			if err != nil {
				detail = core.EntryDetail{Entry: entry}
			}
			a.printf("Started %s · %s at %s\n",
				core.LabelOr(detail.TaskName()),
				core.LabelOr(detail.ProjectName()),
				entry.Start.In(a.reports.Location()).Format("15:04"))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&taskID, "task", "t", "", "Task id")
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project id used with --task-name")
	cmd.Flags().StringVar(&taskName, "task-name", "", "Task name, created under --project when missing")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "Free-text notes")
	return cmd
}

func newStopCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running entry",
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			stopped, ok, err := a.timer.Stop(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				a.printf("No timer was running\n")
				return nil
			}
			a.printf("Stopped after %s\n", core.FormatHM(stopped.Duration()))
			return nil
		}),
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running entry",
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			ctx := cmd.Context()
			entry, ok := a.timer.Active()
			if !ok {
				a.printf("Idle\n")
				return nil
			}
			detail, err := a.entries.Get(ctx, entry.ID)
			if err != nil {
				detail = core.EntryDetail{Entry: entry}
			}
			label := core.LabelOr(detail.TaskName()) + " · " + core.LabelOr(detail.ProjectName())

			if !watch || !term.IsTerminal(int(os.Stdout.Fd())) {
				a.printf("%s  %s\n", core.FormatClock(a.timer.Elapsed()), label)
				return nil
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()
			a.timer.Watch(ctx, time.Second, func(t timer.Tick, running bool) {
				if !running {
					a.printf("\r\033[KIdle\n")
					stop()
					return
				}
				a.printf("\r\033[K%s  %s", core.FormatClock(t.Elapsed), label)
			})
			a.printf("\n")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		}),
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep refreshing the elapsed time (terminals only)")
	return cmd
}
