// Package config is the process wide configuration value object. It is built
// once at startup and handed by reference to every component constructor.
package config

import (
	"connectfill/internal/components/pacing"
	"connectfill/internal/components/retry"
	"connectfill/internal/components/telemetry"
	"connectfill/internal/quota"
	"connectfill/lib/configutil"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

var ErrMissingCredentials = errors.New("username and password must be set (LINUXDO_USERNAME / LINUXDO_PASSWORD)")

// Credentials is the account identity, immutable for the process lifetime.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Endpoints struct {
	// BaseUrl is the forum root, every forum endpoint is resolved against it.
	BaseUrl string `json:"base_url"`
	// ConnectUrl is the quota tracking page.
	ConnectUrl string `json:"connect_url"`
	LoginPath   string `json:"login_path"`
	CsrfPath    string `json:"csrf_path"`
	SessionPath string `json:"session_path"`
	LatestPath  string `json:"latest_path"`
	// TimingsPath reports reading time, {id} is replaced with the topic id.
	TimingsPath     string `json:"timings_path"`
	PostActionsPath string `json:"post_actions_path"`
}

type HTTPConfig struct {
	UserAgent      string  `json:"user_agent"`
	AcceptLanguage string  `json:"accept_language"`
	Timezone       string  `json:"timezone"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
	// RequestsPerSecond of 0 disables rate limiting.
	RequestsPerSecond float64 `json:"requests_per_second"`
	// Stealth wraps the transport with a browser like TLS/header fingerprint.
	Stealth bool `json:"stealth"`
	// DumpDir, when set, receives every HTTP exchange with credentials redacted.
	DumpDir string `json:"dump_dir"`
}

type PacingConfig struct {
	TopicLimit       int             `json:"topic_limit"`
	ReadSegments     pacing.IntRange `json:"read_segments"`
	ReadTime         pacing.Range    `json:"read_time"`
	SegmentPause     pacing.Range    `json:"segment_pause"`
	ItemPause        pacing.Range    `json:"item_pause"`
	FailureThreshold int             `json:"failure_threshold"`
	Cooling          pacing.Range    `json:"cooling"`
}

type BrowserConfig struct {
	Enabled  bool   `json:"enabled"`
	Headless bool   `json:"headless"`
	ExecPath string `json:"exec_path"`
	// VerifyPath is an authenticated only page visited after cookies are applied.
	VerifyPath string `json:"verify_path"`
	// Indicator is the selector that only exists for a logged in user.
	Indicator     string       `json:"indicator"`
	VerifySeconds float64      `json:"verify_seconds"`
	Retry         retry.Policy `json:"retry"`
	ScrollSteps   int          `json:"scroll_steps"`
}

type PushConfig struct {
	Url   string `json:"url"`
	Token string `json:"token"`
}

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

type NotifyConfig struct {
	Title string     `json:"title"`
	Push  PushConfig `json:"push"`
	Smtp  SmtpConfig `json:"smtp"`
}

type TelemetryConfig struct {
	// Otlp traces are exported only when an endpoint is set.
	Otlp telemetry.OtlpConfig `json:"otlp"`
}

type Config struct {
	Credentials Credentials   `json:"credentials"`
	Endpoints   Endpoints     `json:"endpoints"`
	HTTP        HTTPConfig    `json:"http"`
	Pacing      PacingConfig  `json:"pacing"`
	Browser     BrowserConfig `json:"browser"`
	Notify      NotifyConfig  `json:"notify"`
	Rules       []quota.Rule  `json:"rules"`

	Telemetry TelemetryConfig `json:"telemetry"`
}

func Default() Config {
	return Config{
		Endpoints: Endpoints{
			BaseUrl:     "https://linux.do",
			ConnectUrl:  "https://connect.linux.do/",
			LoginPath:   "/login",
			CsrfPath:    "/session/csrf",
			SessionPath: "/session",
			LatestPath:  "/latest",

			TimingsPath:     "/topics/{id}/timings",
			PostActionsPath: "/post_actions",
		},
		HTTP: HTTPConfig{
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AcceptLanguage:    "zh-CN,zh;q=0.9",
			Timezone:          "Asia/Shanghai",
			TimeoutSeconds:    30,
			RequestsPerSecond: 2,
			Stealth:           true,
		},
		Pacing: PacingConfig{
			TopicLimit:       50,
			ReadSegments:     pacing.IntRange{Min: 2, Max: 4},
			ReadTime:         pacing.Range{Min: 12, Max: 45},
			SegmentPause:     pacing.Range{Min: 2, Max: 5},
			ItemPause:        pacing.Range{Min: 1, Max: 3},
			FailureThreshold: 5,
			Cooling:          pacing.Range{Min: 60, Max: 120},
		},
		Browser: BrowserConfig{
			Headless:      true,
			VerifyPath:    "/latest",
			Indicator:     "#current-user",
			VerifySeconds: 15,
			Retry:         retry.Policy{Attempts: 3, Delay: 2},
			ScrollSteps:   4,
		},
		Notify: NotifyConfig{
			Title: "Linux.Do Connect",
		},
	}
}

// Load reads path (and its .local override) on top of the defaults, then
// applies the environment, see ApplyEnv.
func Load(path string) (Config, error) {
	cfg, _, err := configutil.Read(path, Default())
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

func firstEnv(lookup func(string) (string, bool), names ...string) (string, bool) {
	for _, n := range names {
		v, ok := lookup(n)
		if ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// ApplyEnv overrides file values with the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := firstEnv(lookup, "LINUXDO_USERNAME", "USERNAME"); ok {
		c.Credentials.Username = v
	}
	if v, ok := firstEnv(lookup, "LINUXDO_PASSWORD", "PASSWORD"); ok {
		c.Credentials.Password = v
	}
	if v, ok := firstEnv(lookup, "BROWSE_ENABLED"); ok {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			c.Browser.Enabled = enabled
		}
	}
	if v, ok := firstEnv(lookup, "PUSH_URL"); ok {
		c.Notify.Push.Url = v
	}
	if v, ok := firstEnv(lookup, "PUSH_TOKEN"); ok {
		c.Notify.Push.Token = v
	}
	if v, ok := firstEnv(lookup, "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); ok {
		c.Telemetry.Otlp.HttpEndpoint = v
	} else if v, ok := firstEnv(lookup, "OTEL_EXPORTER_OTLP_ENDPOINT"); ok {
		// the generic endpoint is a base url, signals live under /v1/<signal>
		c.Telemetry.Otlp.HttpEndpoint = strings.TrimSuffix(v, "/") + "/v1/traces"
	}
}

// Validate checks what must hold before any network activity.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Credentials.Username) == "" || c.Credentials.Password == "" {
		return ErrMissingCredentials
	}
	for _, raw := range []string{c.Endpoints.BaseUrl, c.Endpoints.ConnectUrl} {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid endpoint %q: %w", raw, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid endpoint %q: must be absolute", raw)
		}
	}
	if c.Pacing.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be at least 1, got %d", c.Pacing.FailureThreshold)
	}
	if c.Pacing.ReadSegments.Min < 1 {
		return fmt.Errorf("read_segments.min must be at least 1, got %d", c.Pacing.ReadSegments.Min)
	}
	return nil
}
