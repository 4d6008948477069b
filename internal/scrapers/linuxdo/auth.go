package linuxdo

import (
	"connectfill/internal/config"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	report_client_authenticate = "client.authenticate"
)

// ErrToken means the anti-forgery token endpoint did not answer with a token.
var ErrToken = errors.New("linuxdo: could not obtain csrf token")

// AuthError is a rejected login, Reason carries the server message when
// there was one.
type AuthError struct {
	Status int
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	msg := "linuxdo: login failed"
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Authenticate runs the login handshake: baseline cookies from the login page,
// a fresh csrf token, then the session creation request. It never retries,
// on success the client's jar carries the authenticated cookies.
func (c *Client) Authenticate(ctx context.Context, creds config.Credentials) error {
	// a failed attempt must not leave an earlier session looking valid
	c.authenticated.Store(false)
	c.tel.ReportInfo("login attempt", "username", creds.Username)

	res, err := c.Http.R().
		SetContext(ctx).
		Get(c.endpoints.LoginPath)
	if err != nil {
		c.tel.ReportBroken(report_client_authenticate, "err", fmt.Errorf("login page request: %w", err))
		return &AuthError{Err: err}
	}
	if !res.IsSuccess() {
		c.tel.ReportWarning(report_client_authenticate, "step", "login page", "status", res.StatusCode())
	}

	token, err := c.fetchCsrf(ctx)
	if err != nil {
		c.tel.ReportBroken(report_client_authenticate, "err", err)
		return err
	}

	err = c.createSession(ctx, creds, token)
	if err != nil {
		c.tel.ReportBroken(report_client_authenticate, "err", err)
		return err
	}

	c.authenticated.Store(true)
	c.invalid.Store(false)
	c.tel.ReportInfo("login succeeded", "username", creds.Username)
	return nil
}

func (c *Client) fetchCsrf(ctx context.Context) (string, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"Accept":           "application/json, text/javascript, */*; q=0.01",
			"X-Requested-With": "XMLHttpRequest",
			"Referer":          c.resolve(c.endpoints.LoginPath),
		}).
		Get(c.endpoints.CsrfPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrToken, err)
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("%w: status %d", ErrToken, res.StatusCode())
	}

	var body struct {
		Csrf string `json:"csrf"`
	}
	err = json.Unmarshal(res.Body(), &body)
	if err != nil {
		return "", fmt.Errorf("%w: response is not json: %w", ErrToken, err)
	}
	if body.Csrf == "" {
		return "", fmt.Errorf("%w: response has no csrf field", ErrToken)
	}
	return body.Csrf, nil
}

func (c *Client) createSession(ctx context.Context, creds config.Credentials, token string) error {
	res, err := c.Http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"X-CSRF-Token":     token,
			"X-Requested-With": "XMLHttpRequest",
			"Origin":           c.BaseUrl.Scheme + "://" + c.BaseUrl.Host,
			"Referer":          c.resolve(c.endpoints.LoginPath),
		}).
		SetFormData(map[string]string{
			"login":                creds.Username,
			"password":             creds.Password,
			"second_factor_method": "1",
			"timezone":             c.httpCfg.Timezone,
		}).
		Post(c.endpoints.SessionPath)
	if err != nil {
		return &AuthError{Err: err}
	}

	var body errorBody
	decodeErr := json.Unmarshal(res.Body(), &body)

	if !res.IsSuccess() {
		return &AuthError{Status: res.StatusCode(), Reason: body.reason()}
	}
	if decodeErr != nil {
		return &AuthError{Status: res.StatusCode(), Reason: "response is not json"}
	}
	if reason := body.reason(); reason != "" {
		return &AuthError{Status: res.StatusCode(), Reason: reason}
	}
	return nil
}
