package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/framez/backend/internal/cards"
	"github.com/framez/backend/internal/client"
	"github.com/framez/backend/internal/models"
)

func profileCmd(a *app) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your profile and posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if err := a.showProfile(ctx, out); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return a.watchProfile(ctx, out)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Refresh whenever one of your posts changes")
	return cmd
}

func (a *app) showProfile(ctx context.Context, out io.Writer) error {
	page, err := a.client.Profile(ctx)
	if err != nil {
		return err
	}
	return renderProfile(out, page, a.client.User(), time.Now())
}

func renderProfile(out io.Writer, page client.ProfilePage, user *models.SessionUser, now time.Time) error {
	name := page.Profile.FullName
	if name == "" {
		name = "User"
	}
	email := page.Profile.Email
	if email == "" && user != nil {
		email = user.Email
	}

	fmt.Fprintf(out, "%s\n%s\n%d posts · %d images\n", name, email, page.Stats.Posts, page.Stats.Images)
	if len(page.Posts) == 0 {
		fmt.Fprintln(out, "\nNo posts yet")
		return nil
	}

	relative := func(t time.Time) string { return cards.RelativeTime(now, t) }
	for _, card := range page.Posts {
		fmt.Fprintln(out)
		if err := cards.Write(out, card, relative); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) watchProfile(ctx context.Context, out io.Writer) error {
	changed := make(chan struct{}, 1)
	sub, err := a.client.SubscribeOwnPosts(ctx, func(models.PostChange) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("watch posts: %w", err)
	}
	defer sub.Unsubscribe()

	fmt.Fprintln(out, "\nWatching for changes, press Ctrl+C to stop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			if err := sub.Err(); err != nil {
				return fmt.Errorf("watch posts: %w", err)
			}
			return nil
		case <-changed:
			fmt.Fprintln(out, "\n--- posts changed ---")
			if err := a.showProfile(ctx, out); err != nil {
				return err
			}
		}
	}
}
