// Command redbot is a small command line front end for the redbot client.
//
// Credentials come from a JSON or TOML file given with --config, or from the
// REDDIT_* environment variables (optionally via a .env file):
//
//	redbot --config credentials.json me
//	redbot top golang -n 10
//	redbot search rust
//	redbot listing user/{username}/saved --limit 100 --pages 3
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
