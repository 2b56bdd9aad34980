package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quantumlife/lifectx/internal/app"
	"github.com/quantumlife/lifectx/internal/core"
	"github.com/quantumlife/lifectx/internal/query"
)

func taskIDs(a *app.App) []string {
	var ids []string
	for _, t := range a.Tasks.List() {
		ids = append(ids, t.ID)
	}
	return ids
}

// taskCmd manages tasks
func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks"},
		Short:   "Manage tasks",
	}
	cmd.AddCommand(taskAddCmd(), taskListCmd(), taskStatusCmd(), taskDoneCmd(), taskRemoveCmd())
	return cmd
}

func taskAddCmd() *cobra.Command {
	var (
		description string
		priority    string
		category    string
		deadline    string
		tags        []string
		status      string
	)

	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := core.NewTask{
				Title:       strings.Join(args, " "),
				Description: description,
				Status:      core.TaskStatus(status),
				Priority:    core.Priority(priority),
				Category:    core.TaskCategory(category),
				Tags:        tags,
			}
			if deadline != "" {
				t, err := parseWhen(deadline)
				if err != nil {
					return err
				}
				in.Deadline = &t
			}

			return withApp(func(ctx context.Context, a *app.App) error {
				task, err := a.Tasks.Add(ctx, in)
				if err != nil {
					return err
				}
				fmt.Printf("✅ Added task %s: %s\n", shortID(task.ID), task.Title)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "low, medium, high or urgent")
	cmd.Flags().StringVarP(&category, "category", "c", "", "social, shopping, work, personal or other")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline, YYYY-MM-DD[ HH:MM]")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default draft)")
	return cmd
}

func taskListCmd() *cobra.Command {
	var (
		opts      query.TaskOptions
		status    string
		priority  string
		category  string
		sortBy    string
		sortOrder string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Status = core.TaskStatus(status)
			opts.Priority = core.Priority(priority)
			opts.Category = core.TaskCategory(category)
			opts.Sort = query.Sort{Field: query.SortField(sortBy), Order: query.SortOrder(sortOrder)}

			return withApp(func(ctx context.Context, a *app.App) error {
				tasks := a.Tasks.Query(opts)
				if len(tasks) == 0 {
					fmt.Println("No tasks.")
					return nil
				}

				w := newTable()
				fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tCATEGORY\tDEADLINE\tTITLE")
				for _, t := range tasks {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						shortID(t.ID), t.Status, t.Priority, t.Category, formatTime(t.Deadline), truncate(t.Title, 50))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&priority, "priority", "", "filter by priority")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "search title, description and tags")
	cmd.Flags().StringVar(&sortBy, "sort", "", "createdAt, deadline or priority")
	cmd.Flags().StringVar(&sortOrder, "order", "asc", "asc or desc")
	return cmd
}

func taskStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [id] [status]",
		Short: "Set a task's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := core.TaskStatus(args[1])
			return withApp(func(ctx context.Context, a *app.App) error {
				id, err := resolveID(args[0], taskIDs(a))
				if err != nil {
					return err
				}
				task, err := a.Tasks.Update(ctx, id, core.TaskUpdate{Status: &status})
				if err != nil {
					return err
				}
				fmt.Printf("Task %s is now %s\n", shortID(task.ID), task.Status)
				return nil
			})
		},
	}
}

func taskDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [id]",
		Short: "Toggle a task between active and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				id, err := resolveID(args[0], taskIDs(a))
				if err != nil {
					return err
				}
				task, err := a.Tasks.ToggleComplete(ctx, id)
				if err != nil {
					return err
				}
				fmt.Printf("Task %s is now %s\n", shortID(task.ID), task.Status)
				return nil
			})
		},
	}
}

func taskRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm [id]",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				id, err := resolveID(args[0], taskIDs(a))
				if err != nil {
					return err
				}
				if err := a.Tasks.Remove(ctx, id); err != nil {
					return err
				}
				fmt.Printf("🗑  Deleted task %s\n", shortID(id))
				return nil
			})
		},
	}
}
