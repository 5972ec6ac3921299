package test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reeflab/reefdb/internal/dosing"
	"github.com/reeflab/reefdb/internal/model"
)

// TestMQTTDoserRoundTrip runs the command/confirmation handshake against a
// real broker, with this test playing the doser. Requires TEST_MQTT_BROKER_URL.
func TestMQTTDoserRoundTrip(t *testing.T) {
	broker := os.Getenv("TEST_MQTT_BROKER_URL")
	if broker == "" {
		t.Skip("TEST_MQTT_BROKER_URL not set, skipping")
	}

	client, err := dosing.NewMQTTDoser(broker, "reefdb-test")
	if err != nil {
		t.Skipf("MQTT broker not available: %v", err)
	}
	defer client.Close()

	// fake doser: echo every dose command back as a confirmation
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID("reefdb-test-doser")
	doserSide := mqtt.NewClient(opts)
	token := doserSide.Connect()
	token.Wait()
	require.NoError(t, token.Error())
	defer doserSide.Disconnect(250)

	sub := doserSide.Subscribe("doser/7/dose", 1, func(_ mqtt.Client, msg mqtt.Message) {
		var cmd struct {
			Amount float64 `json:"amount"`
		}
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			return
		}
		payload, _ := json.Marshal(map[string]any{
			"success":       true,
			"actual_amount": cmd.Amount,
		})
		doserSide.Publish("doser/7/confirmation", 1, false, payload)
	})
	sub.Wait()
	require.NoError(t, sub.Error())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conf, err := client.RequestDose(ctx, model.Doser{ID: 7, Transport: model.DoserTransportMQTT}, 12.5, 1)
	require.NoError(t, err)
	assert.Equal(t, 12.5, conf.ActualAmount)

	// no doser listening on this ID, the bounded wait must give up
	shortCtx, cancelShort := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancelShort()
	_, err = client.RequestDose(shortCtx, model.Doser{ID: 99, Transport: model.DoserTransportMQTT}, 1, 1)
	assert.Error(t, err)
}
