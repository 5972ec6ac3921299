package dosing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/reeflab/reefdb/internal/model"
)

// HTTPDoser talks to dosers that expose their own HTTP endpoint.
type HTTPDoser struct {
	http *http.Client
}

var _ DoserClient = (*HTTPDoser)(nil)

func NewHTTPDoser(timeout time.Duration) *HTTPDoser {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDoser{http: &http.Client{Timeout: timeout}}
}

func (d *HTTPDoser) RequestDose(ctx context.Context, doser model.Doser, amount float64, scheduleID int) (Confirmation, error) {
	body, err := json.Marshal(map[string]any{
		"doser_id":    doser.ID,
		"schedule_id": scheduleID,
		"amount":      amount,
	})
	if err != nil {
		return Confirmation{}, err
	}

	url := strings.TrimRight(doser.Endpoint, "/") + "/dose"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Confirmation{}, fmt.Errorf("build doser request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return Confirmation{}, fmt.Errorf("doser %d: %w", doser.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Confirmation{}, fmt.Errorf("doser %d: %s", doser.ID, resp.Status)
	}

	var out struct {
		Success      bool    `json:"success"`
		ActualAmount float64 `json:"actual_amount"`
		Error        string  `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Confirmation{}, fmt.Errorf("doser %d: decode confirmation: %w", doser.ID, err)
	}
	if !out.Success {
		return Confirmation{}, fmt.Errorf("doser %d reported failure: %s", doser.ID, out.Error)
	}
	return Confirmation{ActualAmount: out.ActualAmount, ConfirmedAt: time.Now()}, nil
}
