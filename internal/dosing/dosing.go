// Package dosing holds the clients the scheduler uses to reach the dosing
// API and physical doser hardware.
package dosing

import (
	"context"
	"fmt"
	"time"

	"github.com/reeflab/reefdb/internal/model"
)

// TriggerResult is what the dosing API reports back for an administered dose.
type TriggerResult struct {
	DoseID int     `json:"dose_id"`
	Amount float64 `json:"amount"`
}

// TriggerAPI fires one dose through the trigger-dose endpoint, which
// atomically decrements product availability and records the dose event.
// Callers must never retry a failed trigger: a retry cannot distinguish
// "the pump already fired" from "it didn't".
type TriggerAPI interface {
	TriggerDose(ctx context.Context, scheduleID, tankID int) (TriggerResult, error)
}

// Confirmation is a doser's report of the amount actually administered.
type Confirmation struct {
	ActualAmount float64
	ConfirmedAt  time.Time
}

// DoserClient performs the bounded confirmation handshake with a physical
// doser. Implementations must honor ctx cancellation.
type DoserClient interface {
	RequestDose(ctx context.Context, doser model.Doser, amount float64, scheduleID int) (Confirmation, error)
}

// Dispatcher routes a confirmation request to the transport the doser is
// bound to.
type Dispatcher struct {
	http DoserClient
	mqtt DoserClient
}

func NewDispatcher(httpClient, mqttClient DoserClient) *Dispatcher {
	return &Dispatcher{http: httpClient, mqtt: mqttClient}
}

func (d *Dispatcher) RequestDose(ctx context.Context, doser model.Doser, amount float64, scheduleID int) (Confirmation, error) {
	switch doser.Transport {
	case model.DoserTransportMQTT:
		if d.mqtt == nil {
			return Confirmation{}, fmt.Errorf("doser %d requires mqtt but no broker is configured", doser.ID)
		}
		return d.mqtt.RequestDose(ctx, doser, amount, scheduleID)
	default:
		if d.http == nil {
			return Confirmation{}, fmt.Errorf("doser %d requires http but no client is configured", doser.ID)
		}
		return d.http.RequestDose(ctx, doser, amount, scheduleID)
	}
}
