package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantumlife/lifectx/internal/app"
	"github.com/quantumlife/lifectx/internal/core"
	"github.com/quantumlife/lifectx/internal/query"
)

// contextCmd captures and lists contexts
func contextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "context",
		Aliases: []string{"ctx", "capture"},
		Short:   "Capture and browse contexts",
	}
	cmd.AddCommand(contextNoteCmd(), contextChatCmd(), contextListCmd())
	return cmd
}

func contextNoteCmd() *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "note [text]",
		Short: "Capture a manual note and extract dates from it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := &core.ManualData{
				Content:   strings.Join(args, " "),
				Tags:      tags,
				Timestamp: time.Now(),
			}
			return capture(data)
		},
	}

	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag (repeatable)")
	return cmd
}

func contextChatCmd() *cobra.Command {
	var platform, sender, conversation string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Capture a chat message and extract dates from it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := &core.ChatData{
				Platform:       platform,
				Sender:         sender,
				Message:        strings.Join(args, " "),
				ConversationID: conversation,
				Timestamp:      time.Now(),
			}
			return capture(data)
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "manual", "chat platform")
	cmd.Flags().StringVar(&sender, "from", "", "sender")
	cmd.Flags().StringVar(&conversation, "conversation", "", "conversation id")
	return cmd
}

func capture(data core.ContextData) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		c, err := a.Contexts.Capture(ctx, data)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Captured %s context %s\n", c.Data.Source(), shortID(c.ID))
		for _, e := range c.Entities {
			fmt.Printf("   📅 %s %q (confidence %.2f)\n", e.Type, e.Text, e.Confidence)
		}
		return nil
	})
}

func contextListCmd() *cobra.Command {
	var (
		opts   query.ContextOptions
		source string
		status string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List captured contexts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Source = core.ContextSource(source)
			opts.Status = core.ContextStatus(status)
			opts.Sort = query.Sort{Field: query.SortCreatedAt, Order: query.Desc}

			return withApp(func(ctx context.Context, a *app.App) error {
				contexts := a.Contexts.Query(opts)
				if len(contexts) == 0 {
					fmt.Println("No contexts.")
					return nil
				}

				w := newTable()
				fmt.Fprintln(w, "ID\tCAPTURED\tSOURCE\tSTATUS\tENTITIES\tTEXT")
				for _, c := range contexts {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
						shortID(c.ID), formatTime(&c.CreatedAt), c.Data.Source(), c.Status,
						len(c.Entities), truncate(core.ContextText(c.Data), 50))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "screenshot, chat, location, voice or manual")
	cmd.Flags().StringVar(&status, "status", "", "pending, processing, completed or failed")
	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "search captured text")
	return cmd
}
