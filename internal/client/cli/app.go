// Package cli implements the TokenKeeper command-line client.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/api"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/config"
)

// ErrUsage is returned for a missing or unknown command.
var ErrUsage = errors.New("usage: client [-a addr] [-t timeout] register|login|whoami <access>|refresh <refresh>|logout <refresh>")

// API is the subset of the HTTP client the commands use.
type API interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (*api.Tokens, error)
	WhoAmI(ctx context.Context, access string) (*api.Profile, error)
	Refresh(ctx context.Context, refresh string) (string, error)
	Logout(ctx context.Context, refresh string) error
}

type App struct {
	api    API
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) *App {
	return newApp(api.New(c.ServerAddr, c.RequestTimeout), os.Stdin, os.Stdout)
}

func newApp(client API, in io.Reader, out io.Writer) *App {
	return &App{api: client, reader: bufio.NewReader(in), out: out}
}

// Run executes one command given as args.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "register":
		return a.register(ctx)
	case "login":
		return a.login(ctx)
	case "whoami":
		return a.withToken(rest, func(tok string) error { return a.whoami(ctx, tok) })
	case "refresh":
		return a.withToken(rest, func(tok string) error { return a.refresh(ctx, tok) })
	case "logout":
		return a.withToken(rest, func(tok string) error { return a.logout(ctx, tok) })
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, ErrUsage)
	}
}

func (a *App) withToken(args []string, fn func(string) error) error {
	if len(args) != 1 || args[0] == "" {
		return ErrUsage
	}
	return fn(args[0])
}

func (a *App) credentials() (string, string, error) {
	userName, err := getText(a.reader, "Username", a.out)
	if err != nil {
		return "", "", err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return "", "", err
	}
	return userName, password, nil
}

func (a *App) register(ctx context.Context) error {
	userName, password, err := a.credentials()
	if err != nil {
		return err
	}
	if err := a.api.Register(ctx, userName, password); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Registered!")
	return nil
}

func (a *App) login(ctx context.Context) error {
	userName, password, err := a.credentials()
	if err != nil {
		return err
	}
	tokens, err := a.api.Login(ctx, userName, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "access:  %s\nrefresh: %s\n", tokens.AccessToken, tokens.RefreshToken)
	return nil
}

func (a *App) whoami(ctx context.Context, access string) error {
	p, err := a.api.WhoAmI(ctx, access)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (%s), token expires %s\n", p.Username, p.ID, time.Unix(p.Expires, 0).Format(time.RFC3339))
	return nil
}

func (a *App) refresh(ctx context.Context, refresh string) error {
	access, err := a.api.Refresh(ctx, refresh)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "access:  %s\n", access)
	return nil
}

func (a *App) logout(ctx context.Context, refresh string) error {
	if err := a.api.Logout(ctx, refresh); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}
