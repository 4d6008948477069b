// client.go contains the transport shared by every call against the forum:
// one cookie jar, one rate limiter and the session validity flag.

package linuxdo

import (
	"connectfill/internal/components/assert"
	"connectfill/internal/components/pacing"
	"connectfill/internal/components/telemetry"
	"connectfill/internal/config"
	"connectfill/lib/restyutil"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync/atomic"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	report_client_session = "client.session"
)

// ErrSessionInvalid is returned by every authenticated call once the forum
// reported that the session is no longer logged in.
var ErrSessionInvalid = errors.New("linuxdo: session is no longer authenticated")

// StatusError is a non-success HTTP status for an operation.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("linuxdo: %s: unexpected status %d", e.Op, e.Status)
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	endpoints config.Endpoints
	httpCfg   config.HTTPConfig
	pacingCfg config.PacingConfig
	pacer     *pacing.Pacer
	tel       telemetry.API

	authenticated atomic.Bool
	invalid       atomic.Bool
}

func NewClient(cfg *config.Config, pacer *pacing.Pacer, tel telemetry.API) (*Client, error) {
	assert.NotNil(cfg)
	assert.NotNil(pacer)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("linuxdo", tel)

	baseUrl, err := url.Parse(cfg.Endpoints.BaseUrl)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(cfg.Endpoints.BaseUrl)
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if cfg.HTTP.Stealth {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("User-Agent", cfg.HTTP.UserAgent)
	httpClient.SetHeader("Accept-Language", cfg.HTTP.AcceptLanguage)
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	if cfg.HTTP.TimeoutSeconds > 0 {
		httpClient.SetTimeout(time.Duration(cfg.HTTP.TimeoutSeconds * float64(time.Second)))
	}

	if cfg.HTTP.RequestsPerSecond > 0 {
		rateLimiter := rate.NewLimiter(rate.Limit(cfg.HTTP.RequestsPerSecond), 2)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel)
	if cfg.HTTP.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(cfg.HTTP.DumpDir)
		if err != nil {
			return nil, err
		}
		restyutil.DumpExchanges(httpClient, output)
	}

	c := &Client{
		BaseUrl:   baseUrl,
		Http:      httpClient,
		endpoints: cfg.Endpoints,
		httpCfg:   cfg.HTTP,
		pacingCfg: cfg.Pacing,
		pacer:     pacer,
		tel:       tel,
	}
	httpClient.OnAfterResponse(c.watchSession)
	return c, nil
}

type errorBody struct {
	Error     string   `json:"error"`
	Errors    []string `json:"errors"`
	ErrorType string   `json:"error_type"`
}

func (b errorBody) reason() string {
	if b.Error != "" {
		return b.Error
	}
	if len(b.Errors) > 0 {
		return b.Errors[0]
	}
	return ""
}

// watchSession flips the session to invalid the first time the forum answers
// an authenticated call with a not-logged-in error.
func (c *Client) watchSession(_ *resty.Client, res *resty.Response) error {
	if !c.authenticated.Load() {
		return nil
	}
	if res.StatusCode() != http.StatusForbidden && res.StatusCode() != http.StatusUnauthorized {
		return nil
	}
	var body errorBody
	if json.Unmarshal(res.Body(), &body) != nil || body.ErrorType != "not_logged_in" {
		return nil
	}
	if !c.invalid.Swap(true) {
		c.tel.ReportWarning(report_client_session, "err", ErrSessionInvalid, "url", res.Request.URL)
	}
	return nil
}

// Valid reports whether authenticated calls may still be attempted.
func (c *Client) Valid() bool {
	return c.authenticated.Load() && !c.invalid.Load()
}

func (c *Client) requireSession() error {
	if !c.authenticated.Load() {
		return fmt.Errorf("linuxdo: not authenticated")
	}
	if c.invalid.Load() {
		return ErrSessionInvalid
	}
	return nil
}

func (c *Client) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return c.BaseUrl.String() + path
	}
	return c.BaseUrl.ResolveReference(ref).String()
}

// Cookies returns what the jar would present to the forum root.
func (c *Client) Cookies() []*http.Cookie {
	return c.Http.GetClient().Jar.Cookies(c.BaseUrl)
}
