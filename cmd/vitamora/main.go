// Command vitamora is a terminal client for the Vitamora API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"vitamora/internal/middleware"

	"github.com/docopt/docopt-go"
)

const version = "1.0.0"

const usage = `Vitamora terminal client.

The server defaults to $VITAMORA_SERVER or http://localhost:8080.
Tokens are kept in the session file between runs.

Usage:
    vitamora signup [options] --email=<email> --password=<password> --first=<first_name> [--last=<last_name>]
    vitamora login [options] --email=<email> --password=<password>
    vitamora logout [options]
    vitamora whoami [options]
    vitamora feed [options] [--limit=<n>] [--follow] [--patch]
    vitamora like [options] <post_id>
    vitamora comments [options] <post_id>
    vitamora comment [options] <post_id> <text>
    vitamora uncomment [options] <post_id> <comment_id>
    vitamora post [options] <text> [--image=<path>]
    vitamora avatar [options] <path>
    vitamora -h | --help
    vitamora --version

Options:
    -h --help                 Show this screen.
    --version                 Show version.
    --server=<url>            API base URL.
    --session-file=<path>     Where tokens are stored.
    --limit=<n>               Number of posts to show [default: 20].
    --follow                  Keep the feed open and redraw on live changes.
    --patch                   Apply live inserts locally instead of refetching.
    --image=<path>            Attach an image to the post.
    --email=<email>
    --password=<password>
    --first=<first_name>
    --last=<last_name>`

type command func(ctx context.Context, app *cli, opts docopt.Opts) error

var commands = []struct {
	name string
	run  command
}{
	{"signup", runSignup},
	{"login", runLogin},
	{"logout", runLogout},
	{"whoami", runWhoami},
	{"feed", runFeed},
	{"like", runLike},
	{"comments", runComments},
	{"comment", runComment},
	{"uncomment", runUncomment},
	{"post", runPost},
	{"avatar", runAvatar},
}

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	// Diagnostics go to stderr so command output stays pipeable.
	middleware.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(middleware.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newCLI(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "vitamora:", err)
		os.Exit(1)
	}
	for _, c := range commands {
		if on, _ := opts.Bool(c.name); on {
			if err := c.run(ctx, app, opts); err != nil {
				fmt.Fprintln(os.Stderr, "vitamora:", err)
				os.Exit(1)
			}
			return
		}
	}
}
