package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"vitamora/internal/client"
	"vitamora/internal/models"
	"vitamora/internal/session"

	"github.com/docopt/docopt-go"
	"gopkg.in/yaml.v3"
)

const defaultServer = "http://localhost:8080"

// credentials is the on-disk form of a signed-in session.
type credentials struct {
	Server       string    `yaml:"server"`
	UserID       uint      `yaml:"user_id"`
	AccessToken  string    `yaml:"access_token"`
	RefreshToken string    `yaml:"refresh_token"`
	SavedAt      time.Time `yaml:"saved_at"`
}

type cli struct {
	server      string
	sessionFile string
	session     *session.Context
	api         *client.Client
	out         io.Writer
}

func newCLI(ctx context.Context, opts docopt.Opts) (*cli, error) {
	path, _ := opts.String("--session-file")
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locate config dir: %w", err)
		}
		path = filepath.Join(dir, "vitamora", "session.yaml")
	}
	saved, err := loadCredentials(path)
	if err != nil {
		return nil, err
	}

	server, _ := opts.String("--server")
	switch {
	case server != "":
	case os.Getenv("VITAMORA_SERVER") != "":
		server = os.Getenv("VITAMORA_SERVER")
	case saved != nil && saved.Server != "":
		server = saved.Server
	default:
		server = defaultServer
	}

	sess := session.New()
	app := &cli{
		server:      server,
		sessionFile: path,
		session:     sess,
		api:         client.New(server, sess),
		out:         os.Stdout,
	}
	if err := app.restore(ctx, saved); err != nil {
		return nil, err
	}
	sess.Subscribe(app.persist)
	return app, nil
}

// restore resumes the saved session, refreshing it once if the access token
// was rejected. An unusable session leaves the CLI anonymous.
func (a *cli) restore(ctx context.Context, saved *credentials) error {
	if saved == nil || saved.Server != a.server {
		return a.api.Restore(ctx, "", "")
	}
	err := a.api.Restore(ctx, saved.AccessToken, saved.RefreshToken)
	if err == nil {
		return nil
	}
	if !models.IsCode(err, models.CodeAuthenticationRequired) || saved.RefreshToken == "" {
		return err
	}
	if err := a.session.Apply(session.AuthEvent{
		Type:         session.EventInitialSession,
		AccessToken:  saved.AccessToken,
		RefreshToken: saved.RefreshToken,
		UserID:       saved.UserID,
	}); err != nil {
		return err
	}
	if _, err := a.api.Refresh(ctx); err != nil {
		_ = a.session.Apply(session.AuthEvent{Type: session.EventSignedOut})
		a.persist(a.session.Snapshot())
		return nil
	}
	a.persist(a.session.Snapshot())
	return nil
}

func (a *cli) persist(snap session.Snapshot) {
	if !snap.Authenticated() {
		if err := os.Remove(a.sessionFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "vitamora: could not remove session file:", err)
		}
		return
	}
	raw, err := yaml.Marshal(credentials{
		Server:       a.server,
		UserID:       snap.UserID,
		AccessToken:  snap.AccessToken,
		RefreshToken: snap.RefreshToken,
		SavedAt:      time.Now().UTC(),
	})
	if err == nil {
		err = os.MkdirAll(filepath.Dir(a.sessionFile), 0o700)
	}
	if err == nil {
		err = os.WriteFile(a.sessionFile, raw, 0o600)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "vitamora: could not save session:", err)
	}
}

func loadCredentials(path string) (*credentials, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var c credentials
	if err := yaml.Unmarshal(raw, &c); err != nil {
		// A corrupt file is treated as signed out.
		return nil, nil
	}
	if c.AccessToken == "" {
		return nil, nil
	}
	return &c, nil
}

func (a *cli) requireSignedIn() error {
	if a.session.UserID() == 0 {
		return models.NewAuthenticationRequiredError("Not signed in; run `vitamora login` first")
	}
	return nil
}
