package main

import (
	"strings"

	"github.com/aluiziolira/go-flickfinder/tmdb"
	"github.com/spf13/cobra"
)

func newPhraseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "phrase <words...>",
		Short: "Random photo from a Flickr text search",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOnce(cmd, actionPhrase, a.phraseOp(strings.Join(args, " ")))
		},
	}
}

func newLocationCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "location <lat> <lon>",
		Short: "Random photo taken around a latitude/longitude",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOnce(cmd, actionLocation, a.locationOp(args[0], args[1]))
		},
	}
}

func newGalleryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "gallery [gallery-id]",
		Short: "Random photo from a Flickr gallery",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			galleryID := ""
			if len(args) == 1 {
				galleryID = args[0]
			}
			return a.runOnce(cmd, actionGallery, a.galleryOp(galleryID))
		},
	}
}

func newLoginCmd(a *app) *cobra.Command {
	var creds tmdb.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to TheMovieDB and print the account id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if creds.Password == "" {
				creds.Password = passwordFromEnv()
			}
			return a.runOnce(cmd, actionLogin, a.loginOp(creds))
		},
	}
	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "TMDB username")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "TMDB password (env FLICKFINDER_TMDB_PASSWORD)")
	return cmd
}

func newImageCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "image <url>",
		Short: "Download a single image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOnce(cmd, actionImage, a.imageOp(args[0], out))
		},
	}
	cmd.Flags().StringVar(&out, "save", "", "Write the image to this file")
	return cmd
}

func newInteractiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Read actions from stdin; a new action cancels the one in flight",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.interactive(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
