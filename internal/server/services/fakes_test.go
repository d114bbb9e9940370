package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/password"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var errBoom = errors.New("boom")

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeUsersRepo struct {
	mu        sync.Mutex
	byName    map[string]*models.User
	createErr error
	getErr    error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byName: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byName[u.UserName]; ok {
		return nil, common.ErrorAlreadyExists
	}
	cp := *u
	f.byName[u.UserName] = &cp
	return u, nil
}

func (f *fakeUsersRepo) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[userName]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

type fakeLedger struct {
	mu        sync.Mutex
	tokens    map[string]string
	calls     int
	createErr error
	existsErr error
	deleteErr error
	swept     int64
	sweepErr  error
	sweeps    int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{tokens: map[string]string{}}
}

func (f *fakeLedger) Create(ctx context.Context, userID, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.createErr != nil {
		return f.createErr
	}
	f.tokens[token] = userID
	return nil
}

func (f *fakeLedger) Exists(ctx context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.tokens[token]
	return ok, nil
}

func (f *fakeLedger) Delete(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.tokens, token)
	return nil
}

func (f *fakeLedger) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	if f.sweepErr != nil {
		return 0, f.sweepErr
	}
	return f.swept, nil
}

func (f *fakeLedger) has(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tokens[token]
	return ok
}

func (f *fakeLedger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() *config.Config {
	return &config.Config{
		AccessTokenSecret:            "access-secret",
		RefreshTokenSecret:           "refresh-secret",
		AccessTokenValidityDuration:  15 * time.Minute,
		RefreshTokenValidityDuration: 7 * 24 * time.Hour,
	}
}

type fixture struct {
	svc     *SessionService
	users   users.Repository
	ledger  refreshtokens.Repository
	codec   *auth.Codec
	clock   *clock
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, u users.Repository, l refreshtokens.Repository) *fixture {
	t.Helper()

	clk := &clock{t: time.Now().Truncate(time.Second)}
	codec, err := auth.NewCodec(testConfig(), auth.WithClock(clk.Now))
	require.NoError(t, err)

	hasher, err := password.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	m := metrics.New()
	svc, err := NewSessionService(u, l, hasher, codec, discardLogger(), m)
	require.NoError(t, err)

	return &fixture{svc: svc, users: u, ledger: l, codec: codec, clock: clk, metrics: m}
}
