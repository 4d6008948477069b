package linuxdo

import (
	"connectfill/internal/components/chrono"
	"connectfill/internal/components/pacing"
	"connectfill/internal/components/telemetry"
	"connectfill/internal/config"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type timing struct {
	topic int64
	total int
}

// fakeForum mimics the forum endpoints the client talks to.
type fakeForum struct {
	mu sync.Mutex

	password     string
	tokenCounter int
	liveToken    string
	sessions     int
	csrfBody     string
	// sessionStatus answers a successful login, 0 means 200
	sessionStatus int

	connectHTML string
	latestHTML  string

	failTimings map[int64]bool
	expired     bool

	timings       []timing
	likes         []int64
	relocatedHits int
}

func newFakeForum(t *testing.T) (*fakeForum, *httptest.Server) {
	f := &fakeForum{
		password:    "secret",
		failTimings: map[int64]bool{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", f.login)
	mux.HandleFunc("GET /session/csrf", f.csrf)
	mux.HandleFunc("POST /session", f.session)
	mux.HandleFunc("GET /latest", f.latest)
	mux.HandleFunc("GET /connect/", f.connect)
	mux.HandleFunc("POST /topics/{id}/timings", f.timing)
	mux.HandleFunc("POST /post_actions", f.like)
	// relocated action endpoints, see TestConfiguredActionPaths
	mux.HandleFunc("POST /api/t/{id}/timings", f.relocated(f.timing))
	mux.HandleFunc("POST /api/reactions", f.relocated(f.like))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeForum) login(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "_forum_session", Value: "baseline", Path: "/"})
	w.Write([]byte("<html>login</html>"))
}

func (f *fakeForum) csrf(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.csrfBody != "" {
		w.Write([]byte(f.csrfBody))
		return
	}
	f.tokenCounter++
	f.liveToken = fmt.Sprintf("token-%d", f.tokenCounter)
	writeJSON(w, http.StatusOK, map[string]string{"csrf": f.liveToken})
}

func (f *fakeForum) session(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	token := r.Header.Get("X-CSRF-Token")
	if token == "" || token != f.liveToken {
		writeJSON(w, http.StatusForbidden, map[string]any{"errors": []string{"BAD CSRF"}, "error_type": "invalid_access"})
		return
	}
	// tokens are single use
	f.liveToken = ""

	if _, err := r.Cookie("_forum_session"); err != nil {
		writeJSON(w, http.StatusForbidden, map[string]any{"errors": []string{"missing baseline cookie"}})
		return
	}
	if r.FormValue("password") != f.password || r.FormValue("second_factor_method") != "1" {
		writeJSON(w, http.StatusOK, map[string]string{"error": "Incorrect username, email or password"})
		return
	}

	f.sessions++
	http.SetCookie(w, &http.Cookie{Name: "_t", Value: "auth-" + strconv.Itoa(f.sessions), Path: "/", HttpOnly: true})
	status := http.StatusOK
	if f.sessionStatus != 0 {
		status = f.sessionStatus
	}
	writeJSON(w, status, map[string]any{"user": map[string]string{"username": r.FormValue("login")}})
}

func (f *fakeForum) authorized(w http.ResponseWriter, r *http.Request) bool {
	cookie, err := r.Cookie("_t")
	if err != nil || !strings.HasPrefix(cookie.Value, "auth-") || f.expired {
		writeJSON(w, http.StatusForbidden, map[string]any{"errors": []string{"not logged in"}, "error_type": "not_logged_in"})
		return false
	}
	return true
}

func (f *fakeForum) latest(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.authorized(w, r) {
		return
	}
	w.Write([]byte(f.latestHTML))
}

func (f *fakeForum) connect(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.authorized(w, r) {
		return
	}
	w.Write([]byte(f.connectHTML))
}

func (f *fakeForum) timing(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.authorized(w, r) {
		return
	}
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if f.failTimings[id] {
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}
	total, _ := strconv.Atoi(r.FormValue("timings[0][total_time]"))
	f.timings = append(f.timings, timing{topic: id, total: total})
	w.WriteHeader(http.StatusOK)
}

func (f *fakeForum) relocated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.relocatedHits++
		f.mu.Unlock()
		next(w, r)
	}
}

func (f *fakeForum) like(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.authorized(w, r) {
		return
	}
	if r.FormValue("post_action_type_id") != "2" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}
	id, _ := strconv.ParseInt(r.FormValue("id"), 10, 64)
	f.likes = append(f.likes, id)
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func testConfig(baseUrl string) *config.Config {
	cfg := config.Default()
	cfg.Credentials = config.Credentials{Username: "alice", Password: "secret"}
	cfg.Endpoints.BaseUrl = baseUrl
	cfg.Endpoints.ConnectUrl = baseUrl + "/connect/"
	cfg.HTTP.RequestsPerSecond = 0
	cfg.HTTP.TimeoutSeconds = 5
	cfg.HTTP.Stealth = false
	return &cfg
}

func newTestClient(t *testing.T, cfg *config.Config) (*Client, *chrono.Fake, *telemetry.Recorder) {
	clock := chrono.NewFake(time.Time{})
	rec := telemetry.NewRecorder()
	client, err := NewClient(cfg, pacing.NewPacer(clock, rand.NewPCG(1, 1)), rec)
	require.NoError(t, err)
	return client, clock, rec
}

func (f *fakeForum) setPassword(password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.password = password
}

func (f *fakeForum) setExpired(expired bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = expired
}

func (f *fakeForum) recordedTimings() []timing {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]timing(nil), f.timings...)
}

func (f *fakeForum) relocatedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.relocatedHits
}

func (f *fakeForum) recordedLikes() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.likes...)
}
