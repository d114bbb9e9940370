package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	user, pass string
	token      string
	err        error
}

func (f *fakeAPI) Register(ctx context.Context, u, p string) error {
	f.user, f.pass = u, p
	return f.err
}

func (f *fakeAPI) Login(ctx context.Context, u, p string) (*api.Tokens, error) {
	f.user, f.pass = u, p
	if f.err != nil {
		return nil, f.err
	}
	return &api.Tokens{AccessToken: "acc", RefreshToken: "ref"}, nil
}

func (f *fakeAPI) WhoAmI(ctx context.Context, access string) (*api.Profile, error) {
	f.token = access
	if f.err != nil {
		return nil, f.err
	}
	return &api.Profile{ID: "u1", Username: "alice", Expires: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Unix()}, nil
}

func (f *fakeAPI) Refresh(ctx context.Context, refresh string) (string, error) {
	f.token = refresh
	return "new-acc", f.err
}

func (f *fakeAPI) Logout(ctx context.Context, refresh string) error {
	f.token = refresh
	return f.err
}

func stubPassword(t *testing.T, pw string, err error) {
	t.Helper()
	orig := readPassword
	readPassword = func(int) ([]byte, error) { return []byte(pw), err }
	t.Cleanup(func() { readPassword = orig })
}

func TestRegister(t *testing.T) {
	stubPassword(t, "s3cret", nil)
	f := &fakeAPI{}
	var out bytes.Buffer

	err := newApp(f, strings.NewReader("alice\n"), &out).Run(context.Background(), []string{"register"})
	require.NoError(t, err)
	assert.Equal(t, "alice", f.user)
	assert.Equal(t, "s3cret", f.pass)
	assert.Contains(t, out.String(), "Registered!")
}

func TestLogin(t *testing.T) {
	stubPassword(t, "pw", nil)
	f := &fakeAPI{}
	var out bytes.Buffer

	err := newApp(f, strings.NewReader("alice"), &out).Run(context.Background(), []string{"login"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "access:  acc")
	assert.Contains(t, out.String(), "refresh: ref")
}

func TestLogin_PasswordReadError(t *testing.T) {
	stubPassword(t, "", errors.New("not a terminal"))
	f := &fakeAPI{}

	err := newApp(f, strings.NewReader("alice\n"), &bytes.Buffer{}).Run(context.Background(), []string{"login"})
	assert.EqualError(t, err, "not a terminal")
	assert.Empty(t, f.user, "no request without a password")
}

func TestTokenCommands(t *testing.T) {
	f := &fakeAPI{}
	var out bytes.Buffer
	app := newApp(f, strings.NewReader(""), &out)

	require.NoError(t, app.Run(context.Background(), []string{"whoami", "acc"}))
	assert.Equal(t, "acc", f.token)
	assert.Contains(t, out.String(), "alice (u1), token expires 2026-01-01")

	require.NoError(t, app.Run(context.Background(), []string{"refresh", "ref"}))
	assert.Contains(t, out.String(), "access:  new-acc")

	require.NoError(t, app.Run(context.Background(), []string{"logout", "ref"}))
	assert.Contains(t, out.String(), "Logged out.")
}

func TestUsageErrors(t *testing.T) {
	app := newApp(&fakeAPI{}, strings.NewReader(""), &bytes.Buffer{})

	for _, args := range [][]string{nil, {"dance"}, {"whoami"}, {"refresh", "a", "b"}, {"logout", ""}} {
		assert.ErrorIs(t, app.Run(context.Background(), args), ErrUsage, "%v", args)
	}
}

func TestAPIErrorPropagates(t *testing.T) {
	boom := &api.Error{Status: 403, Message: "invalid or expired refresh token"}
	app := newApp(&fakeAPI{err: boom}, strings.NewReader(""), &bytes.Buffer{})

	err := app.Run(context.Background(), []string{"refresh", "ref"})
	assert.ErrorIs(t, err, boom)
}
