package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/framez/backend/internal/cards"
	"github.com/framez/backend/internal/client"
)

func postCmd(a *app) *cobra.Command {
	var content, imagePath string
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Share a post with text, an image, or both",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := client.CreatePostInput{Content: content}
			if imagePath != "" {
				f, err := os.Open(imagePath)
				if err != nil {
					return fmt.Errorf("open image: %w", err)
				}
				defer f.Close()
				input.Image = f
				input.ImageName = imagePath
			}

			card, err := a.client.CreatePost(cmd.Context(), input)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Post created!")
			return cards.Write(cmd.OutOrStdout(), card, cards.Timestamp)
		},
	}
	cmd.Flags().StringVarP(&content, "content", "c", "", "What's on your mind?")
	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "Path to a jpeg, png, webp or gif image")
	return cmd
}
