package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/campusync/campusync/internal/ui"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Photo album management (local-only)",
	Long: `Manage department photo albums.

Albums live in the local cache only and are not part of the sync
cycle. Image bytes go to the configured blob endpoint; the album keeps
the returned references in insertion order.`,
}

var galleryCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new album",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		description, _ := cmd.Flags().GetString("description")

		a, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		album, err := a.gallery.CreateAlbum(context.Background(), a.cfg.Owner, args[0], description, a.cfg.Owner)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}
		fmt.Printf("%s Created album %s (%s)\n", ui.RenderPass("✓"), album.Title, ui.RenderMuted(album.ID))
	},
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List albums",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		albums, err := a.gallery.Albums(context.Background(), a.cfg.Owner)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		if len(albums) == 0 {
			fmt.Printf("%s No albums yet\n", ui.RenderWarn("⚠"))
			return
		}

		fmt.Printf("\n%s\n\n", ui.RenderHeader(fmt.Sprintf("Albums (%d)", len(albums))))
		for _, album := range albums {
			fmt.Printf("  %s  %-32s %d images  %s\n",
				ui.RenderAccent(album.ID), album.Title, len(album.Images),
				ui.RenderMuted(album.CreatedAt.Format("2006-01-02")))
		}
	},
}

var galleryAddCmd = &cobra.Command{
	Use:   "add <albumId> <image file>",
	Short: "Upload an image into an album",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		caption, _ := cmd.Flags().GetString("caption")

		a, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		data, err := os.ReadFile(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read %s: %v\n", args[1], err)
			os.Exit(1)
		}
		if caption == "" {
			caption = filepath.Base(args[1])
		}

		img, err := a.gallery.AddImage(context.Background(), a.cfg.Owner, args[0], "", caption, data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}
		fmt.Printf("%s Added %s (%s)\n", ui.RenderPass("✓"), caption, ui.RenderMuted(img.Ref))
	},
}

var galleryDeleteCmd = &cobra.Command{
	Use:   "delete <albumId>",
	Short: "Delete an album",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		if err := a.gallery.DeleteAlbum(context.Background(), a.cfg.Owner, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}
		fmt.Printf("%s Album deleted\n", ui.RenderPass("✓"))
	},
}

func init() {
	galleryCreateCmd.Flags().String("description", "", "album description")
	galleryAddCmd.Flags().String("caption", "", "image caption (default: file name)")

	galleryCmd.AddCommand(galleryCreateCmd)
	galleryCmd.AddCommand(galleryListCmd)
	galleryCmd.AddCommand(galleryAddCmd)
	galleryCmd.AddCommand(galleryDeleteCmd)
	rootCmd.AddCommand(galleryCmd)
}
