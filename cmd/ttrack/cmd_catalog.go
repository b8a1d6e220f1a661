package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"timetracker/internal/store"
)

func newClientsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "List clients",
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			clients, err := a.catalog.Clients(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, c := range clients {
				fmt.Fprintf(tw, "%s\t%s\n", c.ID, c.Name)
			}
			return tw.Flush()
		}),
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <name>",
			Short: "Create a client",
			Args:  cobra.MinimumNArgs(1),
			RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				c, err := a.catalog.CreateClient(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				a.printf("Created client %s (%s)\n", c.Name, c.ID)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Delete a client with its projects, tasks and entries",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				if err := a.catalog.DeleteClient(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.printf("Deleted client %s\n", args[0])
				return nil
			}),
		},
	)
	return cmd
}

func newProjectsCmd(opts *rootOptions) *cobra.Command {
	var all bool
	var clientID string
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects",
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, _ []string) error {
			projects, err := a.catalog.Projects(cmd.Context(), store.ProjectFilter{ClientID: clientID, ActiveOnly: !all})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCLIENT\tACTIVE")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", p.ID, p.Name, p.ClientID, p.IsActive)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include archived projects")
	cmd.Flags().StringVar(&clientID, "client", "", "Only projects of this client id")

	var addClient string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a project under --client",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			p, err := a.catalog.CreateProject(cmd.Context(), addClient, strings.Join(args, " "))
			if err != nil {
				return err
			}
			a.printf("Created project %s (%s)\n", p.Name, p.ID)
			return nil
		}),
	}
	add.Flags().StringVar(&addClient, "client", "", "Client id")
	_ = add.MarkFlagRequired("client")

	setActive := func(use, short string, active bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				if err := a.catalog.SetProjectActive(cmd.Context(), args[0], active); err != nil {
					return err
				}
				a.printf("Project %s active=%t\n", args[0], active)
				return nil
			}),
		}
	}

	cmd.AddCommand(
		add,
		setActive("archive", "Hide a project from the timer", false),
		setActive("activate", "Offer an archived project again", true),
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Delete a project with its tasks and entries",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
				if err := a.catalog.DeleteProject(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.printf("Deleted project %s\n", args[0])
				return nil
			}),
		},
	)
	return cmd
}

func newTasksCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks <project-id>",
		Short: "List the tasks of a project",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			tasks, err := a.catalog.Tasks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, t := range tasks {
				fmt.Fprintf(tw, "%s\t%s\n", t.ID, t.Name)
			}
			return tw.Flush()
		}),
	}
	var project string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a task under --project",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			t, err := a.catalog.CreateTask(cmd.Context(), project, strings.Join(args, " "))
			if err != nil {
				return err
			}
			a.printf("Created task %s (%s)\n", t.Name, t.ID)
			return nil
		}),
	}
	add.Flags().StringVar(&project, "project", "", "Project id")
	_ = add.MarkFlagRequired("project")
	cmd.AddCommand(add, &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task and its entries",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.catalog.DeleteTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.printf("Deleted task %s\n", args[0])
			return nil
		}),
	})
	return cmd
}
