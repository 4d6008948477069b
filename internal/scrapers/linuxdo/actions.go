package linuxdo

import (
	"connectfill/internal/components/pacing"
	"connectfill/internal/quota"
	"context"
	"fmt"
	"strconv"
	"strings"
)

const (
	report_client_read = "client.read"
	report_client_like = "client.like"
)

// likeActionType is the forum's post action type id for a like.
const likeActionType = "2"

// ReadPlan is the cumulative total_time (seconds) reported after each segment.
type ReadPlan []int

// PlanRead splits a randomly drawn dwell time into segments. Each segment is
// worth 60%-100% of the dwell time and the plan is the running total.
func (c *Client) PlanRead() ReadPlan {
	segments := c.pacer.Int(c.pacingCfg.ReadSegments)
	base := c.pacer.Float(c.pacingCfg.ReadTime)

	plan := make(ReadPlan, 0, segments)
	total := 0
	for i := 0; i < segments; i++ {
		total += max(int(base*c.pacer.Float(pacing.Range{Min: 0.6, Max: 1.0})), 1)
		plan = append(plan, total)
	}
	return plan
}

func (c *Client) timingsPath(item quota.WorkItem) string {
	return strings.ReplaceAll(c.endpoints.TimingsPath, "{id}", strconv.FormatInt(item.ID, 10))
}

func (c *Client) xhrHeaders(item quota.WorkItem) map[string]string {
	return map[string]string{
		"X-Requested-With": "XMLHttpRequest",
		"Referer":          c.resolve(item.Path()),
	}
}

// Read simulates reading a topic: before every segment it pauses like a
// human would, then reports the cumulative reading time. The first failing
// segment aborts the rest; segments already reported stay credited.
func (c *Client) Read(ctx context.Context, item quota.WorkItem) error {
	if err := c.requireSession(); err != nil {
		return err
	}

	plan := c.PlanRead()
	for i, total := range plan {
		_, err := c.pacer.Pause(ctx, c.pacingCfg.SegmentPause)
		if err != nil {
			return err
		}

		if err := c.requireSession(); err != nil {
			return err
		}

		res, err := c.Http.R().
			SetContext(ctx).
			SetHeaders(c.xhrHeaders(item)).
			SetFormData(map[string]string{
				"timings[0][topic_id]":   strconv.FormatInt(item.ID, 10),
				"timings[0][total_time]": strconv.Itoa(total),
			}).
			Post(c.timingsPath(item))
		if err != nil {
			c.tel.ReportWarning(report_client_read, "item", item.ID, "segment", i+1, "err", err)
			return fmt.Errorf("read %s: %w", item, err)
		}
		if !res.IsSuccess() {
			err := &StatusError{Op: "timings", Status: res.StatusCode()}
			c.tel.ReportWarning(report_client_read, "item", item.ID, "segment", i+1, "err", err)
			return fmt.Errorf("read %s: %w", item, err)
		}
		c.tel.ReportDebug("timings reported", "item", item.ID, "segment", i+1, "total_time", total)
	}

	c.tel.ReportInfo("read completed", "item", item.ID, "segments", len(plan))
	return nil
}

// Like registers a like reaction on the topic, there is no retry.
func (c *Client) Like(ctx context.Context, item quota.WorkItem) error {
	if err := c.requireSession(); err != nil {
		return err
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetHeaders(c.xhrHeaders(item)).
		SetFormData(map[string]string{
			"id":                  strconv.FormatInt(item.ID, 10),
			"post_action_type_id": likeActionType,
		}).
		Post(c.endpoints.PostActionsPath)
	if err != nil {
		c.tel.ReportWarning(report_client_like, "item", item.ID, "err", err)
		return fmt.Errorf("like %s: %w", item, err)
	}
	if !res.IsSuccess() {
		err := &StatusError{Op: "like", Status: res.StatusCode()}
		c.tel.ReportWarning(report_client_like, "item", item.ID, "err", err)
		return fmt.Errorf("like %s: %w", item, err)
	}

	c.tel.ReportInfo("like succeeded", "item", item.ID)
	return nil
}
