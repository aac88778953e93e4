package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/framez/backend/internal/cards"
	"github.com/framez/backend/internal/client"
)

func feedCmd(a *app) *cobra.Command {
	var (
		limit    int
		before   string
		beforeID string
	)
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show the latest posts from everyone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := client.FeedOptions{Limit: limit}
			if before != "" {
				t, err := time.Parse(time.RFC3339Nano, before)
				if err != nil {
					return fmt.Errorf("--before must be an RFC3339 timestamp: %w", err)
				}
				opts.Before = t
				opts.BeforeID = beforeID
			} else if beforeID != "" {
				return fmt.Errorf("--before-id requires --before")
			}

			page, err := a.client.Feed(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(page.Posts) == 0 {
				fmt.Fprintln(out, "No posts yet. Be the first to share something!")
				return nil
			}
			for i, card := range page.Posts {
				if i > 0 {
					fmt.Fprintln(out)
				}
				if err := cards.Write(out, card, cards.Timestamp); err != nil {
					return err
				}
			}
			if next, ok := page.Next(limit); ok {
				fmt.Fprintf(out, "\nMore: framezctl feed --before %s", next.Before.Format(time.RFC3339Nano))
				if next.BeforeID != "" {
					fmt.Fprintf(out, " --before-id %s", next.BeforeID)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of posts to show (server default when 0)")
	cmd.Flags().StringVar(&before, "before", "", "Only show posts older than this RFC3339 timestamp")
	cmd.Flags().StringVar(&beforeID, "before-id", "", "Post id paired with --before to resume a page")
	return cmd
}

func deleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <post-id>",
		Short: "Delete one of your posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				answer, err := a.prompt(cmd, "Are you sure you want to delete this post? [y/N] ")
				if err != nil {
					return err
				}
				if reply := strings.ToLower(strings.TrimSpace(answer)); reply != "y" && reply != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
			}

			if err := a.client.DeletePost(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete post: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Post deleted")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
