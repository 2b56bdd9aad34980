package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantumlife/lifectx/internal/app"
	"github.com/quantumlife/lifectx/internal/core"
	"github.com/quantumlife/lifectx/internal/query"
)

func eventIDs(a *app.App) []string {
	var ids []string
	for _, e := range a.Events.List() {
		ids = append(ids, e.ID)
	}
	return ids
}

// eventCmd manages social events
func eventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "event",
		Aliases: []string{"events"},
		Short:   "Manage social events (weddings, funerals, birthdays, ...)",
	}
	cmd.AddCommand(eventAddCmd(), eventListCmd(), eventStatusCmd(), eventGiftCmd(), eventRemindCmd(), eventRemoveCmd())
	return cmd
}

func eventAddCmd() *cobra.Command {
	var (
		eventType    string
		date         string
		priority     string
		contactName  string
		relationship string
		place        string
		notes        string
	)

	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a social event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := core.NewSocialEvent{
				Type:     core.EventType(eventType),
				Title:    args[0],
				Priority: core.Priority(priority),
			}
			if date != "" {
				t, err := parseWhen(date)
				if err != nil {
					return err
				}
				in.EventDate = t
			}
			if contactName != "" || relationship != "" {
				in.Contact = &core.Contact{Name: contactName, Relationship: relationship}
			}
			if place != "" {
				in.Location = &core.Location{Name: place}
			}
			if notes != "" {
				in.Notes = &notes
			}

			return withApp(func(ctx context.Context, a *app.App) error {
				e, err := a.Events.Add(ctx, in)
				if err != nil {
					return err
				}
				amount, _ := a.Events.SuggestGift(e.ID)
				fmt.Printf("✅ Added %s %s: %s on %s\n", e.Type, shortID(e.ID), e.Title, formatTime(&e.EventDate))
				fmt.Printf("   Suggested gift: %d\n", amount)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "wedding, funeral, first_birthday, sixtieth_birthday, birthday, graduation or etc")
	cmd.Flags().StringVar(&date, "date", "", "event date, YYYY-MM-DD[ HH:MM]")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "low, medium, high or urgent")
	cmd.Flags().StringVar(&contactName, "contact", "", "who the event is about")
	cmd.Flags().StringVar(&relationship, "relationship", "", "family, relative, friend, colleague, boss, neighbor, ...")
	cmd.Flags().StringVar(&place, "place", "", "location name")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("date")
	return cmd
}

func eventListCmd() *cobra.Command {
	var (
		opts      query.EventOptions
		status    string
		eventType string
		upcoming  bool
		sortOrder string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List social events by date",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Status = core.EventStatus(status)
			opts.Type = core.EventType(eventType)
			opts.Sort = query.Sort{Field: query.SortEventDate, Order: query.SortOrder(sortOrder)}
			if upcoming {
				opts.Range.Start = time.Now()
			}

			return withApp(func(ctx context.Context, a *app.App) error {
				events := a.Events.Query(opts)
				if len(events) == 0 {
					fmt.Println("No events.")
					return nil
				}

				w := newTable()
				fmt.Fprintln(w, "ID\tDATE\tTYPE\tSTATUS\tGIFT\tTITLE")
				for _, e := range events {
					gift := "-"
					if e.GiftAmount != nil {
						gift = fmt.Sprintf("%d", *e.GiftAmount)
					}
					if e.GiftSent {
						gift += " (sent)"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						shortID(e.ID), formatTime(&e.EventDate), e.Type, e.Status, gift, truncate(e.Title, 40))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&eventType, "type", "", "filter by type")
	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "search title, description and notes")
	cmd.Flags().BoolVar(&upcoming, "upcoming", false, "only events from now on")
	cmd.Flags().StringVar(&sortOrder, "order", "asc", "asc or desc")
	return cmd
}

func eventStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [id] [status]",
		Short: "Set an event's status (pending, confirmed, completed, cancelled)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := core.EventStatus(args[1])
			return withApp(func(ctx context.Context, a *app.App) error {
				id, err := resolveID(args[0], eventIDs(a))
				if err != nil {
					return err
				}
				e, err := a.Events.Update(ctx, id, core.SocialEventUpdate{Status: &status})
				if err != nil {
					return err
				}
				fmt.Printf("Event %s is now %s\n", shortID(e.ID), e.Status)
				return nil
			})
		},
	}
}

func eventGiftCmd() *cobra.Command {
	var (
		sent   bool
		amount int
	)

	cmd := &cobra.Command{
		Use:   "gift [id]",
		Short: "Show the suggested gift, or record a sent gift with --sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				id, err := resolveID(args[0], eventIDs(a))
				if err != nil {
					return err
				}

				if !sent {
					suggested, err := a.Events.SuggestGift(id)
					if err != nil {
						return err
					}
					fmt.Printf("🎁 Suggested gift: %d\n", suggested)
					return nil
				}

				var amt *int
				if cmd.Flags().Changed("amount") {
					amt = &amount
				}
				e, err := a.Events.MarkGiftSent(ctx, id, amt, time.Now())
				if err != nil {
					return err
				}
				fmt.Printf("✅ Gift of %d sent for %s\n", *e.GiftAmount, e.Title)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&sent, "sent", false, "record the gift as sent now")
	cmd.Flags().IntVar(&amount, "amount", 0, "amount sent (default: stored or suggested amount)")
	return cmd
}

func eventRemindCmd() *cobra.Command {
	var clearReminder bool

	cmd := &cobra.Command{
		Use:   "remind [id] [when]",
		Short: "Set or clear (--clear) a reminder for an event",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var at *time.Time
			if !clearReminder {
				if len(args) != 2 {
					return fmt.Errorf("reminder time required, or pass --clear")
				}
				t, err := parseWhen(args[1])
				if err != nil {
					return err
				}
				at = &t
			}

			return withApp(func(ctx context.Context, a *app.App) error {
				id, err := resolveID(args[0], eventIDs(a))
				if err != nil {
					return err
				}
				e, err := a.Events.SetReminder(ctx, id, at)
				if err != nil {
					return err
				}
				if e.ReminderSet {
					fmt.Printf("⏰ Reminder for %s at %s\n", e.Title, formatTime(e.ReminderDate))
				} else {
					fmt.Printf("Reminder for %s cleared\n", e.Title)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearReminder, "clear", false, "clear the reminder")
	return cmd
}

func eventRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm [id]",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a social event",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				id, err := resolveID(args[0], eventIDs(a))
				if err != nil {
					return err
				}
				if err := a.Events.Remove(ctx, id); err != nil {
					return err
				}
				fmt.Printf("🗑  Deleted event %s\n", shortID(id))
				return nil
			})
		},
	}
}
