// Package notify delivers the terminal status of a run. Delivery is fire and
// forget, failures are reported and never escalated.
package notify

import (
	"connectfill/internal/components/telemetry"
	"connectfill/internal/config"
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jordan-wright/email"
)

const (
	report_notify_push  = "notify.push"
	report_notify_email = "notify.email"
)

type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Push posts the message to a push endpoint as json {title, content, token}.
type Push struct {
	url   string
	token string
	http  *resty.Client
}

func NewPush(cfg config.PushConfig, tel telemetry.API) Push {
	client := resty.New()
	client.SetTimeout(15 * time.Second)
	telemetry.InstrumentResty(client, telemetry.NewScopedAPI("notify", tel))
	return Push{url: cfg.Url, token: cfg.Token, http: client}
}

func (p Push) Notify(ctx context.Context, title, message string) error {
	body := map[string]string{
		"title":   title,
		"content": message,
	}
	if p.token != "" {
		body["token"] = p.token
	}
	res, err := p.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("push: unexpected status %d", res.StatusCode())
	}
	return nil
}

// Email sends the message over SMTP.
type Email struct {
	cfg config.SmtpConfig
}

func NewEmail(cfg config.SmtpConfig) Email {
	return Email{cfg: cfg}
}

func (e Email) Notify(ctx context.Context, title, message string) error {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("%s <%s>", title, e.cfg.EmailAddress)
	mail.To = e.cfg.To
	mail.Subject = title
	mail.Text = []byte(message)

	addr := fmt.Sprintf("%s:%d", e.cfg.Server, e.cfg.Port)
	err := mail.Send(addr, smtp.PlainAuth("", e.cfg.EmailAddress, e.cfg.Password, e.cfg.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}

// Fanout delivers to every notifier and reports failures instead of returning them.
type Fanout struct {
	targets []named
	tel     telemetry.API
}

type named struct {
	id string
	n  Notifier
}

// FromConfig enables push when a url is set and email when a server and a
// recipient are set.
func FromConfig(cfg config.NotifyConfig, tel telemetry.API) Fanout {
	f := Fanout{tel: telemetry.NewScopedAPI("notify", tel)}
	if cfg.Push.Url != "" {
		f.targets = append(f.targets, named{id: report_notify_push, n: NewPush(cfg.Push, tel)})
	}
	if cfg.Smtp.Server != "" && len(cfg.Smtp.To) > 0 {
		f.targets = append(f.targets, named{id: report_notify_email, n: NewEmail(cfg.Smtp)})
	}
	return f
}

func NewFanout(tel telemetry.API, notifiers ...Notifier) Fanout {
	f := Fanout{tel: telemetry.NewScopedAPI("notify", tel)}
	for i, n := range notifiers {
		f.targets = append(f.targets, named{id: fmt.Sprintf("notify.%d", i), n: n})
	}
	return f
}

func (f Fanout) Len() int {
	return len(f.targets)
}

func (f Fanout) Notify(ctx context.Context, title, message string) error {
	for _, t := range f.targets {
		err := t.n.Notify(ctx, title, message)
		if err != nil {
			f.tel.ReportWarning(t.id, "err", err)
			continue
		}
		f.tel.ReportDebug("notification delivered", "target", t.id)
	}
	return nil
}
