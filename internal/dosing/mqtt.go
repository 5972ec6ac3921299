package dosing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/reeflab/reefdb/internal/model"
)

// MQTTDoser talks to dosers on the broker: it publishes a command on
// doser/<id>/dose and waits for the matching report on
// doser/<id>/confirmation, bounded by the caller's context.
type MQTTDoser struct {
	client mqtt.Client
}

var _ DoserClient = (*MQTTDoser)(nil)

func NewMQTTDoser(brokerURL, clientID string) (*MQTTDoser, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(_ mqtt.Client) {
		log.Info().Str("broker", brokerURL).Msg("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Error().Err(err).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	err := backoff.Retry(func() error {
		token := client.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			log.Warn().Err(err).Msg("MQTT broker not ready, retrying")
			return err
		}
		return nil
	}, bo)
	if err != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", err)
	}

	return &MQTTDoser{client: client}, nil
}

type doseCommand struct {
	ScheduleID  int     `json:"schedule_id"`
	Amount      float64 `json:"amount"`
	RequestedAt string  `json:"requested_at"`
}

type doseConfirmation struct {
	Success      bool    `json:"success"`
	ActualAmount float64 `json:"actual_amount"`
	Error        string  `json:"error"`
}

func (d *MQTTDoser) RequestDose(ctx context.Context, doser model.Doser, amount float64, scheduleID int) (Confirmation, error) {
	cmdTopic := fmt.Sprintf("doser/%d/dose", doser.ID)
	confTopic := fmt.Sprintf("doser/%d/confirmation", doser.ID)

	ch := make(chan doseConfirmation, 1)
	sub := d.client.Subscribe(confTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var conf doseConfirmation
		if err := json.Unmarshal(msg.Payload(), &conf); err != nil {
			log.Error().Err(err).Str("topic", msg.Topic()).Msg("bad doser confirmation payload")
			return
		}
		select {
		case ch <- conf:
		default:
		}
	})
	if sub.Wait(); sub.Error() != nil {
		return Confirmation{}, fmt.Errorf("subscribe %s: %w", confTopic, sub.Error())
	}
	defer d.client.Unsubscribe(confTopic)

	payload, err := json.Marshal(doseCommand{
		ScheduleID:  scheduleID,
		Amount:      amount,
		RequestedAt: time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return Confirmation{}, err
	}
	pub := d.client.Publish(cmdTopic, 1, false, payload)
	if pub.Wait(); pub.Error() != nil {
		return Confirmation{}, fmt.Errorf("publish %s: %w", cmdTopic, pub.Error())
	}

	select {
	case conf := <-ch:
		if !conf.Success {
			return Confirmation{}, fmt.Errorf("doser %d reported failure: %s", doser.ID, conf.Error)
		}
		return Confirmation{ActualAmount: conf.ActualAmount, ConfirmedAt: time.Now()}, nil
	case <-ctx.Done():
		return Confirmation{}, fmt.Errorf("doser %d confirmation: %w", doser.ID, ctx.Err())
	}
}

func (d *MQTTDoser) Close() {
	d.client.Disconnect(250)
}
