package backend

import (
	"context"
	"fmt"

	"myswing/internal/swing"
)

// SubmitAnalysis calls the analysis function. The Idempotency-Key header
// makes repeated submissions of one run resolve to the same job.
func (c *Client) SubmitAnalysis(ctx context.Context, req *swing.SubmitRequest) (*swing.SubmitResponse, error) {
	var out swing.SubmitResponse
	r := c.request(ctx).
		SetBody(req).
		SetResult(&out)
	if req.IdempotencyKey != "" {
		r.SetHeader("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := r.Post("/functions/v1/" + c.functionName)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("analysis", resp)
	}
	c.logger.Debug("analysis submitted",
		"job_id", out.JobID,
		"status", string(out.Status),
		"wait_seconds", req.WaitSeconds,
	)
	return &out, nil
}

// GetJob reads one row of analysis_jobs.
func (c *Client) GetJob(ctx context.Context, jobID string) (*swing.AnalysisJob, error) {
	var rows []swing.AnalysisJob
	resp, err := c.request(ctx).
		SetQueryParams(map[string]string{
			"id":     "eq." + jobID,
			"select": "*",
		}).
		SetResult(&rows).
		Get("/rest/v1/analysis_jobs")
	if err != nil {
		return nil, fmt.Errorf("job request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("get job", resp)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

var _ swing.JobService = (*Client)(nil)
