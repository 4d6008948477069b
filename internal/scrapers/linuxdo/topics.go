package linuxdo

import (
	"bytes"
	"connectfill/internal/components/pacing"
	"connectfill/internal/quota"
	"connectfill/lib/htmlutil"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_client_discover = "client.discover"
)

var topicPathRegex = regexp.MustCompile(`/t/([^/]+)/(\d+)`)

// ParseTopics extracts every topic link of a listing page in document order.
func ParseTopics(doc *goquery.Document) []quota.WorkItem {
	var items []quota.WorkItem
	for _, href := range htmlutil.Hrefs(doc.Find("a.title")) {
		groups := topicPathRegex.FindStringSubmatch(href)
		if len(groups) < 3 {
			continue
		}
		id, err := strconv.ParseInt(groups[2], 10, 64)
		if err != nil {
			continue
		}
		items = append(items, quota.WorkItem{ID: id, Slug: groups[1]})
	}
	return items
}

// Discover fetches the latest listing, shuffles its topics and returns at most limit of them.
// Every call fetches the listing again.
func (c *Client) Discover(ctx context.Context, limit int) ([]quota.WorkItem, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get(c.endpoints.LatestPath)
	if err != nil {
		c.tel.ReportBroken(report_client_discover, "err", fmt.Errorf("fetch: %w", err))
		return nil, err
	}
	if !res.IsSuccess() {
		err := &StatusError{Op: "discover", Status: res.StatusCode()}
		c.tel.ReportBroken(report_client_discover, "err", err)
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		c.tel.ReportBroken(report_client_discover, "err", fmt.Errorf("parse: %w", err))
		return nil, err
	}

	items := ParseTopics(doc)
	pacing.Shuffle(c.pacer, items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	c.tel.ReportInfo("discovered topics", "count", len(items))
	return items, nil
}
