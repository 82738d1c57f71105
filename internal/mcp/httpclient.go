package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/session"
	"github.com/claude/freelift/internal/stats"
	"github.com/claude/freelift/internal/storage"
	"github.com/google/uuid"
)

// HTTPClient implements DataSource by calling the FreeLift REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// the workout log lives on the server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// get fetches path and decodes the JSON body into out. A 404 is reported as
// storage.ErrNotFound.
func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("httpclient: %s: %w", path, storage.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) QueryWorkouts(ctx context.Context, start, end time.Time, limit int) ([]session.WorkoutView, error) {
	params := url.Values{}
	params.Set("start", start.Format(time.RFC3339))
	params.Set("end", end.Format(time.RFC3339))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var workouts []session.WorkoutView
	if err := c.get(ctx, "/api/v1/workouts", params, &workouts); err != nil {
		return nil, err
	}
	return workouts, nil
}

func (c *HTTPClient) GetWorkout(ctx context.Context, id uuid.UUID) (*session.WorkoutView, error) {
	var w session.WorkoutView
	if err := c.get(ctx, "/api/v1/workouts/"+id.String(), nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (c *HTTPClient) ListExercises(ctx context.Context) ([]models.Exercise, error) {
	var exercises []models.Exercise
	if err := c.get(ctx, "/api/v1/exercises", nil, &exercises); err != nil {
		return nil, err
	}
	return exercises, nil
}

func (c *HTTPClient) PersonalRecords(ctx context.Context, exerciseID uuid.UUID) ([]models.PersonalRecord, error) {
	var history []models.PersonalRecord
	if err := c.get(ctx, "/api/v1/exercises/"+exerciseID.String()+"/prs", nil, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func (c *HTTPClient) CurrentRecord(ctx context.Context, exerciseID uuid.UUID) (*models.PersonalRecord, error) {
	var pr *models.PersonalRecord
	if err := c.get(ctx, "/api/v1/exercises/"+exerciseID.String()+"/pr", nil, &pr); err != nil {
		return nil, err
	}
	return pr, nil
}

func (c *HTTPClient) Stats(ctx context.Context) (*stats.Summary, error) {
	var s stats.Summary
	if err := c.get(ctx, "/api/v1/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) ActiveSession(ctx context.Context) (*session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.get(ctx, "/api/v1/session", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
