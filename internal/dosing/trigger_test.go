package dosing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestClientTriggerDose(t *testing.T) {
	var got struct {
		ScheduleID int `json:"schedule_id"`
		TankID     int `json:"tank_id"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/controller/dose" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"dose_id": 42,
			"amount":  7.5,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	res, err := c.TriggerDose(context.Background(), 3, 9)
	if err != nil {
		t.Fatalf("TriggerDose: %v", err)
	}
	if res.DoseID != 42 || res.Amount != 7.5 {
		t.Fatalf("result = %+v", res)
	}
	if got.ScheduleID != 3 || got.TankID != 9 {
		t.Fatalf("request body = %+v", got)
	}
}

func TestClientTriggerDoseRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "insufficient product available",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	if _, err := c.TriggerDose(context.Background(), 3, 9); err == nil {
		t.Fatal("expected an error for a rejected dose")
	}
}

func TestClientBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "boom"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	for i := 0; i < 3; i++ {
		if _, err := c.TriggerDose(context.Background(), 1, 1); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	_, err := c.TriggerDose(context.Background(), 1, 1)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want open breaker", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("server hits = %d, the open breaker must short-circuit", hits.Load())
	}
}
