// -----------------------------------------------------------------------
// Job Client - HTTP access to the crawl backend's job endpoints
// -----------------------------------------------------------------------

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/internal/interfaces"
	"github.com/ternarybob/specto/internal/models"
)

// Service implements the JobClient interface over HTTP.
type Service struct {
	baseURL    string
	httpClient *http.Client
	logger     arbor.ILogger
}

// NewService creates a new HTTP job client.
func NewService(config *common.Config, logger arbor.ILogger) interfaces.JobClient {
	return &Service{
		baseURL: strings.TrimRight(config.Backend.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.RequestTimeout(),
		},
		logger: logger,
	}
}

// GetJobActivity fetches the current job activity for a knowledge base.
func (s *Service) GetJobActivity(ctx context.Context, ownerID string) (*models.JobActivityResponse, error) {
	endpoint := fmt.Sprintf("%s/api/owners/%s/job-activity", s.baseURL, url.PathEscape(ownerID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build job activity request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch job activity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("job activity request failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var activity models.JobActivityResponse
	if err := json.NewDecoder(resp.Body).Decode(&activity); err != nil {
		return nil, fmt.Errorf("decode job activity response: %w", err)
	}

	s.logger.Debug().
		Str("owner_id", ownerID).
		Bool("running", activity.Running).
		Msg("Fetched job activity")

	return &activity, nil
}

// SendCommand issues a control action for a job and returns the resulting
// snapshot.
func (s *Service) SendCommand(ctx context.Context, jobID string, action models.CommandAction) (*models.JobSnapshot, error) {
	endpoint := fmt.Sprintf("%s/api/jobs/%s/commands", s.baseURL, url.PathEscape(jobID))

	payload, err := json.Marshal(models.JobCommandRequest{Action: action})
	if err != nil {
		return nil, fmt.Errorf("encode command request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build command request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send %s command: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s command rejected: HTTP %d: %s", action, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var command models.JobCommandResponse
	if err := json.NewDecoder(resp.Body).Decode(&command); err != nil {
		return nil, fmt.Errorf("decode command response: %w", err)
	}
	if command.Job == nil {
		return nil, fmt.Errorf("%s command response omitted job snapshot", action)
	}

	s.logger.Debug().
		Str("job_id", jobID).
		Str("action", string(action)).
		Str("status", string(command.Job.Status)).
		Msg("Job command applied")

	return command.Job, nil
}
