package linuxdo

import (
	"bytes"
	"connectfill/internal/quota"
	"connectfill/lib/htmlutil"
	"connectfill/lib/textutil"
	"context"
	"fmt"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_client_requirements = "client.requirements"
)

// ParseRequirements turns the requirement table into deficits. Rows need a
// label cell and numeric current/required cells, anything else is skipped.
// Rows whose label matches no rule are ignored.
func ParseRequirements(doc *goquery.Document, classifier quota.Classifier) quota.Map {
	out := quota.Map{}
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		label := htmlutil.CleanText(cells.Eq(0))
		currentText := htmlutil.CleanText(cells.Eq(1))
		requiredText := htmlutil.CleanText(cells.Eq(2))
		if !textutil.IsDigits(currentText) || !textutil.IsDigits(requiredText) {
			return
		}
		current, err := strconv.Atoi(currentText)
		if err != nil {
			return
		}
		required, err := strconv.Atoi(requiredText)
		if err != nil {
			return
		}

		deficit := quota.Deficit(current, required)
		if deficit <= 0 {
			return
		}
		kind, ok := classifier.Classify(label)
		if !ok {
			return
		}
		out.Raise(kind, deficit)
	})
	return out
}

// Requirements fetches the quota tracking page and returns what is still outstanding.
// An empty map means nothing is outstanding.
func (c *Client) Requirements(ctx context.Context, connectUrl string, classifier quota.Classifier) (quota.Map, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get(connectUrl)
	if err != nil {
		c.tel.ReportBroken(report_client_requirements, "err", fmt.Errorf("fetch: %w", err))
		return nil, err
	}
	if !res.IsSuccess() {
		err := &StatusError{Op: "requirements", Status: res.StatusCode()}
		c.tel.ReportBroken(report_client_requirements, "err", err)
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		c.tel.ReportBroken(report_client_requirements, "err", fmt.Errorf("parse: %w", err))
		return nil, err
	}

	deficits := ParseRequirements(doc, classifier)
	c.tel.ReportInfo("discovered deficits", "deficits", deficits.String())
	return deficits, nil
}
