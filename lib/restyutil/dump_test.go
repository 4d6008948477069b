package restyutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mu       sync.Mutex
	messages map[string]string
}

func (m *memoryOutput) Write(id string, contents string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[id] = contents
}

func TestDumpRedactsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "_t", Value: "very-secret"})
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	out := &memoryOutput{messages: map[string]string{}}
	client := resty.New()
	DumpExchanges(client, out)

	_, err := client.R().
		SetHeader("X-CSRF-Token", "token-abc").
		SetFormData(map[string]string{
			"login":    "alice",
			"password": "hunter2",
		}).
		Post(srv.URL + "/session")
	require.NoError(t, err)

	msg, ok := out.messages["0001-POST"]
	require.True(t, ok)
	require.Contains(t, msg, "login=alice")
	require.Contains(t, msg, `{"ok":true}`)
	require.NotContains(t, msg, "hunter2")
	require.NotContains(t, msg, "token-abc")
	require.NotContains(t, msg, "very-secret")
}

func TestDumpNilOutput(t *testing.T) {
	client := resty.New()
	DumpExchanges(client, nil)
}

func TestDumpPlainGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>login</html>")
	}))
	defer srv.Close()

	out := &memoryOutput{messages: map[string]string{}}
	client := resty.New()
	DumpExchanges(client, out)

	res, err := client.R().Get(srv.URL + "/login")
	require.NoError(t, err)
	require.True(t, res.IsSuccess())

	msg, ok := out.messages["0001-GET"]
	require.True(t, ok)
	require.Contains(t, msg, "GET "+srv.URL+"/login")
	require.Contains(t, msg, "<html>login</html>")
}

func TestFilesystemOutputCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dump")

	out, err := NewFilesystemOutput(dir)
	require.NoError(t, err)
	out.Write("0001-GET", "hello")

	contents, err := os.ReadFile(filepath.Join(dir, "0001-GET.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(contents))
}

func TestFilesystemOutputAcceptsEmptyDir(t *testing.T) {
	dir := t.TempDir()

	out, err := NewFilesystemOutput(dir)
	require.NoError(t, err)
	out.Write("0001-GET", "hello")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFilesystemOutputKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	important := filepath.Join(dir, "important.txt")
	require.NoError(t, os.WriteFile(important, []byte("keep me"), 0600))

	_, err := NewFilesystemOutput(dir)
	require.ErrorIs(t, err, ErrDirNotEmpty)

	contents, err := os.ReadFile(important)
	require.NoError(t, err)
	require.Equal(t, "keep me", string(contents))
}

func TestRedactForm(t *testing.T) {
	require.Equal(t, "login=a&password=%3Credacted%3E", redactForm("login=a&password=b"))
	require.Equal(t, "login=a", redactForm("login=a"))
	require.Equal(t, "not a form", redactForm("not a form"))
}
