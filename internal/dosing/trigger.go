package dosing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// Client calls the trigger-dose endpoint behind a circuit breaker. The
// breaker trips on consecutive failures so a dead dosing API stops eating
// worker time; it never retries an individual dose.
type Client struct {
	base string
	http *http.Client
	cb   *gobreaker.CircuitBreaker
}

var _ TriggerAPI = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "dosing-api",
			Interval: time.Minute,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (c *Client) TriggerDose(ctx context.Context, scheduleID, tankID int) (TriggerResult, error) {
	res, err := c.cb.Execute(func() (any, error) {
		return c.postDose(ctx, scheduleID, tankID)
	})
	if err != nil {
		return TriggerResult{}, err
	}
	return res.(TriggerResult), nil
}

func (c *Client) postDose(ctx context.Context, scheduleID, tankID int) (TriggerResult, error) {
	body, err := json.Marshal(map[string]int{
		"schedule_id": scheduleID,
		"tank_id":     tankID,
	})
	if err != nil {
		return TriggerResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/api/controller/dose", bytes.NewReader(body))
	if err != nil {
		return TriggerResult{}, fmt.Errorf("build trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return TriggerResult{}, fmt.Errorf("trigger dose: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Success bool    `json:"success"`
		DoseID  int     `json:"dose_id"`
		Amount  float64 `json:"amount"`
		Error   string  `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return TriggerResult{}, fmt.Errorf("trigger dose: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return TriggerResult{}, fmt.Errorf("trigger dose: %s: %s", resp.Status, out.Error)
		}
		return TriggerResult{}, fmt.Errorf("trigger dose: %s", resp.Status)
	}
	if !out.Success {
		return TriggerResult{}, fmt.Errorf("trigger dose rejected: %s", out.Error)
	}
	return TriggerResult{DoseID: out.DoseID, Amount: out.Amount}, nil
}
