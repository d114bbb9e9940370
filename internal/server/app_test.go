package server

import (
	"bytes"
	"context"
	"database/sql"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/testutil/sqlitetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.DatabaseDriver = config.DriverSQLite
	c.DatabaseDSN = sqlitetest.DSN
	c.AccessTokenSecret = "access-secret"
	c.RefreshTokenSecret = "refresh-secret"
	c.BcryptCost = 4
	c.ShutdownTimeout = time.Second
	return c
}

func doJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func TestNewApp_SQLite(t *testing.T) {
	var logs bytes.Buffer
	app, err := newApp(context.Background(), testConfig(), &logs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	rec := doJSON(t, app.handler, "/register", `{"username":"alice","password":"pw"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, app.handler, "/login", `{"username":"alice","password":"pw"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, logs.String(), `"module":"sessions"`)
}

func TestNewApp_RedisLedger(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()

	app, err := newApp(context.Background(), cfg, &bytes.Buffer{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	rec := doJSON(t, app.handler, "/register", `{"username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, app.handler, "/login", `{"username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Len(t, mr.Keys(), 1, "refresh token recorded in redis")
}

// captureDB records every *sql.DB newApp opens.
func captureDB(t *testing.T) *[]*sql.DB {
	t.Helper()
	var opened []*sql.DB
	orig := openDB
	openDB = func(driver, dsn string) (*sql.DB, error) {
		db, err := orig(driver, dsn)
		if db != nil {
			opened = append(opened, db)
		}
		return db, err
	}
	t.Cleanup(func() { openDB = orig })
	return &opened
}

func TestNewApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		opened bool
	}{
		{"bad log level", func(c *config.Config) { c.LogLevel = "loud" }, false},
		{"bad driver", func(c *config.Config) { c.DatabaseDriver = "mysql" }, false},
		{"bad dsn", func(c *config.Config) { c.DatabaseDSN = "file:/no/such/dir/db.sqlite?mode=ro" }, true},
		{"redis down", func(c *config.Config) { c.RedisAddr = "127.0.0.1:1" }, true},
		{"shared secret", func(c *config.Config) { c.RefreshTokenSecret = c.AccessTokenSecret }, true},
		{"bad bcrypt cost", func(c *config.Config) { c.BcryptCost = 99 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opened := captureDB(t)
			cfg := testConfig()
			tt.mutate(cfg)

			app, err := newApp(context.Background(), cfg, &bytes.Buffer{})
			require.Error(t, err)
			assert.Nil(t, app)

			if !tt.opened {
				assert.Empty(t, *opened)
				return
			}
			require.Len(t, *opened, 1)
			assert.EqualError(t, (*opened)[0].PingContext(context.Background()), "sql: database is closed")
		})
	}
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()

	app, err := newApp(context.Background(), cfg, &bytes.Buffer{})
	require.NoError(t, err)
	db, rdb := app.db, app.redis

	require.NoError(t, app.Close())
	assert.NoError(t, app.Close())
	assert.Nil(t, app.db)
	assert.Nil(t, app.redis)
	assert.Error(t, db.PingContext(context.Background()))
	assert.Error(t, rdb.Ping(context.Background()).Err())

	var nilApp *App
	assert.NoError(t, nilApp.Close())
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := testConfig()
	cfg.EndpointAddrHTTP = addr
	app, err := newApp(context.Background(), cfg, &bytes.Buffer{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Nil(t, app.db, "storage released")
}
