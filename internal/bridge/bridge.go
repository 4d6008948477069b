// Package bridge replicates an authenticated HTTP session onto a second
// channel (a browser) and verifies that the channel observes the same
// logged in identity.
package bridge

import (
	"connectfill/internal/components/assert"
	"connectfill/internal/components/chrono"
	"connectfill/internal/components/retry"
	"connectfill/internal/components/telemetry"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	report_bridge_replicate = "bridge.replicate"
)

// Cookie is a cookie as the second channel needs it, with an explicit domain and path.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Secure   bool
	HTTPOnly bool
}

// Channel is a transport that can hold cookies and render pages.
type Channel interface {
	Location(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	SetCookies(ctx context.Context, cookies []Cookie) error
	// WaitVisible reports whether selector becomes visible before timeout,
	// running out of time is not an error.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) (bool, error)
}

type Stage string

const (
	StageNavigate     Stage = "navigate"
	StagePrecondition Stage = "precondition"
	StageApply        Stage = "apply"
	StageVerify       Stage = "verify"
)

var (
	ErrNoCookies   = errors.New("no cookies to replicate")
	ErrOffSite     = errors.New("channel is not on the target site")
	ErrNotVerified = errors.New("login indicator did not appear")
)

// Error means the identity did not transfer, callers treat it like an
// authentication failure.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("identity bridge: %s: %s", e.Stage, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Options struct {
	// SiteUrl is any page on the target site used to bring the channel onto the domain.
	SiteUrl string
	// VerifyUrl is an authenticated only page.
	VerifyUrl string
	// Indicator is a selector only present for a logged in user.
	Indicator string
	Timeout   time.Duration
	Retry     retry.Policy
}

// ParentDomain returns the registrable domain of host so that cookies apply
// to every subdomain of the site. IPs and single labels are returned as is.
func ParentDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// ExportCookies rewrites jar cookies for the site so the second channel
// presents them on any same-site navigation.
func ExportCookies(cookies []*http.Cookie, site *url.URL) []Cookie {
	domain := ParentDomain(site.Hostname())
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   domain,
			Path:     "/",
			Secure:   site.Scheme == "https",
			HTTPOnly: true,
		})
	}
	return out
}

func onSite(location, domain string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == domain || strings.HasSuffix(host, "."+domain)
}

type Bridge struct {
	opts  Options
	site  *url.URL
	clock chrono.API
	tel   telemetry.API
}

func New(opts Options, clock chrono.API, tel telemetry.API) (*Bridge, error) {
	assert.NotNil(clock)
	assert.NotNil(tel)
	site, err := url.Parse(opts.SiteUrl)
	if err != nil {
		return nil, err
	}
	if site.Hostname() == "" {
		return nil, fmt.Errorf("site url %q has no host", opts.SiteUrl)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Bridge{
		opts:  opts,
		site:  site,
		clock: clock,
		tel:   telemetry.NewScopedAPI("bridge", tel),
	}, nil
}

func (b *Bridge) fail(stage Stage, err error) error {
	bridgeErr := &Error{Stage: stage, Err: err}
	b.tel.ReportBroken(report_bridge_replicate, "stage", stage, "err", err)
	return bridgeErr
}

func (b *Bridge) navigate(ctx context.Context, ch Channel, target string) error {
	return retry.Do(ctx, b.clock, b.opts.Retry, func(ctx context.Context) error {
		return ch.Navigate(ctx, target)
	})
}

// Replicate copies cookies onto ch and verifies the identity took. Cookies
// attached to a channel that never visited the site are dropped by most
// engines, so the channel is first brought onto the site.
func (b *Bridge) Replicate(ctx context.Context, cookies []*http.Cookie, ch Channel) error {
	if len(cookies) == 0 {
		return b.fail(StagePrecondition, ErrNoCookies)
	}
	domain := ParentDomain(b.site.Hostname())

	location, err := ch.Location(ctx)
	if err != nil || !onSite(location, domain) {
		b.tel.ReportDebug("bringing channel onto site", "location", location, "site", b.site.String())
		err = b.navigate(ctx, ch, b.site.String())
		if err != nil {
			return b.fail(StageNavigate, err)
		}
		location, err = ch.Location(ctx)
		if err != nil {
			return b.fail(StagePrecondition, err)
		}
		if !onSite(location, domain) {
			return b.fail(StagePrecondition, fmt.Errorf("%w: at %q", ErrOffSite, location))
		}
	}

	exported := ExportCookies(cookies, b.site)
	err = ch.SetCookies(ctx, exported)
	if err != nil {
		return b.fail(StageApply, err)
	}

	err = b.navigate(ctx, ch, b.opts.VerifyUrl)
	if err != nil {
		return b.fail(StageNavigate, err)
	}
	ok, err := ch.WaitVisible(ctx, b.opts.Indicator, b.opts.Timeout)
	if err != nil {
		return b.fail(StageVerify, err)
	}
	if !ok {
		return b.fail(StageVerify, ErrNotVerified)
	}

	b.tel.ReportInfo("identity replicated", "cookies", len(exported), "domain", domain)
	return nil
}
