package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jamesprial/redbot"
)

func newMeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Log in and print the account name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.loggedIn(cmd)
			if err != nil {
				return err
			}
			name, err := client.Username()
			if err != nil {
				return errors.Wrap(err, "read identity")
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}

func newTopCmd(a *app) *cobra.Command {
	var (
		count  uint64
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "top <subreddit>",
		Short: "Print the top posts of a subreddit",
		Long: `Print the top posts of a subreddit.

Counts above 100 are fetched in pages of 100 and rounded down to a whole
number of pages.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.loggedIn(cmd)
			if err != nil {
				return err
			}
			sub, err := client.Subreddit(args[0])
			if err != nil {
				return err
			}

			if asJSON {
				items, err := sub.GetTop(cmd.Context(), count)
				if err != nil {
					return errors.Wrapf(err, "top posts of r/%s", sub.Name)
				}
				return writeItems(cmd.OutOrStdout(), items)
			}

			posts, err := sub.TopPosts(cmd.Context(), count)
			if err != nil {
				return errors.Wrapf(err, "top posts of r/%s", sub.Name)
			}
			if len(posts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No posts found.")
				return nil
			}
			for i, post := range posts {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s (score: %d, comments: %d, by u/%s)\n",
					i+1, post.Title, post.Score, post.NumComments, post.User.Name)
			}
			return nil
		},
	}

	cmd.Flags().Uint64VarP(&count, "count", "n", 25, "number of posts")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw items as JSON lines")
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Print subreddit names matching a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.loggedIn(cmd)
			if err != nil {
				return err
			}
			subs, err := client.SearchForSubreddit(cmd.Context(), args[0])
			if err != nil {
				return errors.Wrapf(err, "search %q", args[0])
			}
			if len(subs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No subreddits found.")
				return nil
			}
			for _, sub := range subs {
				fmt.Fprintln(cmd.OutOrStdout(), sub.Name)
			}
			return nil
		},
	}
}

func newListingCmd(a *app) *cobra.Command {
	var (
		limit     uint64
		pages     uint64
		after     string
		noShowAll bool
	)

	cmd := &cobra.Command{
		Use:   "listing <path>",
		Short: "Fetch a listing endpoint and print its items as JSON lines",
		Long: `Fetch a listing endpoint and print its items as JSON lines.

The path is relative to the API base URL, e.g. r/golang/new. The placeholder
{username} is replaced by the logged-in account name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.loggedIn(cmd)
			if err != nil {
				return err
			}

			req := redbot.NewListingRequest(args[0], limit, pages)
			req.After = after
			req.ShowAll = !noShowAll

			items, err := client.QueryListing(cmd.Context(), req)
			if err != nil {
				return errors.Wrapf(err, "listing %s", args[0])
			}
			return writeItems(cmd.OutOrStdout(), items)
		},
	}

	cmd.Flags().Uint64Var(&limit, "limit", 25, "items per page (the server caps this at 100)")
	cmd.Flags().Uint64Var(&pages, "pages", 1, "maximum number of pages")
	cmd.Flags().StringVar(&after, "after", "", "start after this fullname")
	cmd.Flags().BoolVar(&noShowAll, "no-show-all", false, "do not send show=all")
	return cmd
}

// writeItems prints one compact JSON document per line.
func writeItems(w io.Writer, items []json.RawMessage) error {
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return errors.Wrap(err, "write item")
		}
	}
	return nil
}
