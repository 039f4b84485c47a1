package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"vitamora/internal/client"
	"vitamora/internal/models"
	"vitamora/internal/social"

	"github.com/docopt/docopt-go"
)

func runSignup(ctx context.Context, a *cli, opts docopt.Opts) error {
	email, _ := opts.String("--email")
	password, _ := opts.String("--password")
	first, _ := opts.String("--first")
	last, _ := opts.String("--last")
	s, err := a.api.SignUp(ctx, client.SignUpRequest{
		Email:     email,
		Password:  password,
		FirstName: first,
		LastName:  last,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed up as user %d\n", s.UserID)
	return nil
}

func runLogin(ctx context.Context, a *cli, opts docopt.Opts) error {
	email, _ := opts.String("--email")
	password, _ := opts.String("--password")
	s, err := a.api.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	name := email
	if s.Profile != nil {
		name = s.Profile.DisplayName()
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", name)
	return nil
}

func runLogout(ctx context.Context, a *cli, _ docopt.Opts) error {
	if a.session.UserID() == 0 {
		fmt.Fprintln(a.out, "Not signed in")
		return nil
	}
	if err := a.api.SignOut(ctx); err != nil {
		// The local session is gone either way.
		fmt.Fprintln(os.Stderr, "vitamora: server sign-out failed:", err)
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func runWhoami(ctx context.Context, a *cli, _ docopt.Opts) error {
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	p, err := a.api.MyProfile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (user %d, %s)\n", p.DisplayName(), p.ID, p.Role)
	return nil
}

func runFeed(ctx context.Context, a *cli, opts docopt.Opts) error {
	limit := 20
	if raw, _ := opts.String("--limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return models.NewValidationError("--limit must be a positive number")
		}
		limit = n
	}
	follow, _ := opts.Bool("--follow")
	patch, _ := opts.Bool("--patch")

	if !follow {
		posts, err := a.api.ListPosts(ctx, limit, 0)
		if err != nil {
			return err
		}
		printPosts(a, posts)
		return nil
	}

	rt, err := client.NewRealtimeClient(a.server, a.session)
	if err != nil {
		return err
	}
	policy := social.FullRefetch
	if patch {
		policy = social.PatchPolicy
	}
	var mu sync.Mutex
	feed := social.NewFeedView(a.api, rt, a.session, nil, social.FeedOptions{
		Policy: policy,
		Limit:  limit,
		OnChange: func(items []*social.FeedItem) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintln(a.out, "----")
			printItems(a, items)
		},
	})
	if err := feed.Mount(ctx); err != nil {
		return err
	}
	defer feed.Close()
	mu.Lock()
	printItems(a, feed.Items())
	mu.Unlock()

	<-ctx.Done()
	return nil
}

func runLike(ctx context.Context, a *cli, opts docopt.Opts) error {
	postID, err := idArg(opts, "<post_id>")
	if err != nil {
		return err
	}
	likes := social.NewLikeSync(postID, a.session, a.api, nil)
	defer likes.Close()
	if _, err := likes.Initialize(ctx); err != nil {
		return err
	}
	view, err := likes.Toggle(ctx)
	if err != nil {
		return err
	}
	verb := "Unliked"
	if view.Liked {
		verb = "Liked"
	}
	fmt.Fprintf(a.out, "%s post %d (%d likes)\n", verb, postID, view.DisplayCount)
	return nil
}

func runComments(ctx context.Context, a *cli, opts docopt.Opts) error {
	postID, err := idArg(opts, "<post_id>")
	if err != nil {
		return err
	}
	thread := social.NewCommentThread(postID, a.session, a.api, nil)
	defer thread.Close()
	comments, err := thread.Load(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, c := range comments {
		author := "unknown"
		if c.Author != nil {
			author = c.Author.DisplayName()
		}
		fmt.Fprintf(w, "#%d\t%s\t%s\t%s\n", c.ID, author, c.CreatedAt.Local().Format("2006-01-02 15:04"), oneLine(c.Content))
	}
	_ = w.Flush()
	fmt.Fprintf(a.out, "%d comments\n", thread.Count())
	return nil
}

func runComment(ctx context.Context, a *cli, opts docopt.Opts) error {
	postID, err := idArg(opts, "<post_id>")
	if err != nil {
		return err
	}
	text, _ := opts.String("<text>")
	thread := social.NewCommentThread(postID, a.session, a.api, nil)
	defer thread.Close()
	c, err := thread.Submit(ctx, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Comment #%d added to post %d\n", c.ID, postID)
	return nil
}

func runUncomment(ctx context.Context, a *cli, opts docopt.Opts) error {
	postID, err := idArg(opts, "<post_id>")
	if err != nil {
		return err
	}
	commentID, err := idArg(opts, "<comment_id>")
	if err != nil {
		return err
	}
	thread := social.NewCommentThread(postID, a.session, a.api, nil)
	defer thread.Close()
	// Ownership is checked against the loaded list before any delete is sent.
	if _, err := thread.Load(ctx); err != nil {
		return err
	}
	if err := thread.Remove(ctx, commentID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Comment #%d removed\n", commentID)
	return nil
}

func runPost(ctx context.Context, a *cli, opts docopt.Opts) error {
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	text, _ := opts.String("<text>")
	var (
		image []byte
		name  string
	)
	if path, _ := opts.String("--image"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		image, name = raw, filepath.Base(path)
	}
	post, err := a.api.CreatePost(ctx, text, image, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Published post %d\n", post.ID)
	return nil
}

func runAvatar(ctx context.Context, a *cli, opts docopt.Opts) error {
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	path, _ := opts.String("<path>")
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	p, err := a.api.UploadAvatar(ctx, raw, filepath.Base(path))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Profile image: %s\n", p.ProfileImageURL)
	return nil
}

func idArg(opts docopt.Opts, name string) (uint, error) {
	raw, _ := opts.String(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, models.NewValidationError(fmt.Sprintf("%s must be a positive number", strings.Trim(name, "<>")))
	}
	return uint(id), nil
}

func printPosts(a *cli, posts []*models.Post) {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, p := range posts {
		writePost(w, *p, p.Liked, p.LikesCount, p.CommentsCount)
	}
	_ = w.Flush()
}

func printItems(a *cli, items []*social.FeedItem) {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, it := range items {
		view := it.Likes.View()
		writePost(w, it.Post(), view.Liked, view.DisplayCount, it.Comments.Count())
	}
	_ = w.Flush()
}

func writePost(w *tabwriter.Writer, p models.Post, liked bool, likes, comments int) {
	author := "unknown"
	if p.Author != nil {
		author = p.Author.DisplayName()
	}
	mark := " "
	if liked {
		mark = "*"
	}
	fmt.Fprintf(w, "#%d\t%s\t%s%d likes\t%d comments\t%s\n", p.ID, author, mark, likes, comments, oneLine(p.Content))
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 72 {
		return string(r[:71]) + "…"
	}
	return s
}
