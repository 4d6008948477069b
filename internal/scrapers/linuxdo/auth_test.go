package linuxdo

import (
	"connectfill/internal/quota"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	forum, srv := newFakeForum(t)
	cfg := testConfig(srv.URL)
	client, _, _ := newTestClient(t, cfg)

	require.False(t, client.Valid())
	err := client.Authenticate(context.Background(), cfg.Credentials)
	require.NoError(t, err)
	require.True(t, client.Valid())
	require.Equal(t, 1, forum.sessions)

	names := []string{}
	for _, c := range client.Cookies() {
		names = append(names, c.Name)
	}
	require.ElementsMatch(t, []string{"_forum_session", "_t"}, names)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	_, srv := newFakeForum(t)
	cfg := testConfig(srv.URL)
	cfg.Credentials.Password = "nope"
	client, _, _ := newTestClient(t, cfg)

	err := client.Authenticate(context.Background(), cfg.Credentials)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, "Incorrect username, email or password", authErr.Reason)
	require.False(t, client.Valid())
}

func TestAuthenticateMissingToken(t *testing.T) {
	table := []string{
		`<html>not json</html>`,
		`{"something": "else"}`,
		`{"csrf": ""}`,
	}
	for _, body := range table {
		forum, srv := newFakeForum(t)
		forum.csrfBody = body
		cfg := testConfig(srv.URL)
		client, _, _ := newTestClient(t, cfg)

		err := client.Authenticate(context.Background(), cfg.Credentials)
		require.ErrorIs(t, err, ErrToken, body)
		require.Equal(t, 0, forum.sessions)
	}
}

func TestAuthenticateTwiceFetchesFreshToken(t *testing.T) {
	forum, srv := newFakeForum(t)
	cfg := testConfig(srv.URL)
	client, _, _ := newTestClient(t, cfg)
	ctx := context.Background()

	require.NoError(t, client.Authenticate(ctx, cfg.Credentials))
	require.NoError(t, client.Authenticate(ctx, cfg.Credentials))
	require.Equal(t, 2, forum.tokenCounter)
	require.Equal(t, 2, forum.sessions)
}

func TestStaleTokenRejected(t *testing.T) {
	forum, srv := newFakeForum(t)
	cfg := testConfig(srv.URL)
	client, _, _ := newTestClient(t, cfg)
	ctx := context.Background()

	require.NoError(t, client.Authenticate(ctx, cfg.Credentials))
	stale := "token-1"

	err := client.createSession(ctx, cfg.Credentials, stale)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, 403, authErr.Status)
	require.Equal(t, "BAD CSRF", authErr.Reason)
	require.Equal(t, 1, forum.sessions)
}

func TestAuthenticateTransportError(t *testing.T) {
	_, srv := newFakeForum(t)
	cfg := testConfig(srv.URL)
	srv.Close()
	client, _, _ := newTestClient(t, cfg)

	err := client.Authenticate(context.Background(), cfg.Credentials)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestAuthenticateDumpsRedactedExchanges(t *testing.T) {
	_, srv := newFakeForum(t)
	cfg := testConfig(srv.URL)
	cfg.HTTP.DumpDir = filepath.Join(t.TempDir(), "http")
	client, _, _ := newTestClient(t, cfg)

	err := client.Authenticate(context.Background(), cfg.Credentials)
	require.NoError(t, err)

	entries, err := os.ReadDir(cfg.HTTP.DumpDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		contents, err := os.ReadFile(filepath.Join(cfg.HTTP.DumpDir, e.Name()))
		require.NoError(t, err)
		require.NotContains(t, string(contents), cfg.Credentials.Password)
	}
}

func TestAuthenticateAcceptsAnySuccessStatus(t *testing.T) {
	forum, srv := newFakeForum(t)
	forum.sessionStatus = http.StatusCreated
	cfg := testConfig(srv.URL)
	client, _, _ := newTestClient(t, cfg)

	require.NoError(t, client.Authenticate(context.Background(), cfg.Credentials))
	require.True(t, client.Valid())
}

func TestFailedReauthenticationInvalidatesSession(t *testing.T) {
	forum, srv := newFakeForum(t)
	cfg := testConfig(srv.URL)
	client, _, _ := newTestClient(t, cfg)
	ctx := context.Background()

	require.NoError(t, client.Authenticate(ctx, cfg.Credentials))
	require.True(t, client.Valid())

	forum.setPassword("rotated")
	var authErr *AuthError
	require.ErrorAs(t, client.Authenticate(ctx, cfg.Credentials), &authErr)
	require.False(t, client.Valid())

	err := client.Like(ctx, quota.WorkItem{ID: 1})
	require.Error(t, err)
	require.Empty(t, forum.recordedLikes())
}
