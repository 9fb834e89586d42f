// Package telemetry publishes sensor snapshots and pump events to an MQTT
// broker. Telemetry is strictly best-effort: a broker outage is logged and
// the control loop keeps running.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/udare/waterctl/internal/logger"
	"github.com/udare/waterctl/internal/models"
)

const publishTimeout = 2 * time.Second

// PublisherConfig holds the broker connection parameters.
type PublisherConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	DeviceID string
}

// Publisher mirrors controller state onto MQTT topics:
//
//	waterctl/<device>/snapshot  retained, one message per sampling tick
//	waterctl/<device>/pump      one message per pump transition
type Publisher struct {
	client   mqtt.Client
	deviceID string
}

// NewPublisher connects to the broker. Auto-reconnect is left on, so a
// broker that comes up later is picked up without restarting the daemon.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("telemetry: broker connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("telemetry: connected to broker %s", cfg.Broker)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{client: client, deviceID: cfg.DeviceID}, nil
}

type snapshotMessage struct {
	ID       string          `json:"id"`
	DeviceID string          `json:"device_id"`
	Snapshot models.Snapshot `json:"snapshot"`
}

type pumpMessage struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	On        bool      `json:"on"`
	SoilPct   int       `json:"soil_percent"`
	Reservoir bool      `json:"reservoir_present"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishSnapshot mirrors the latest snapshot, retained so late subscribers
// see the current state immediately.
func (p *Publisher) PublishSnapshot(snap models.Snapshot) {
	msg := snapshotMessage{
		ID:       uuid.New().String(),
		DeviceID: p.deviceID,
		Snapshot: snap,
	}
	p.publish(fmt.Sprintf("waterctl/%s/snapshot", p.deviceID), msg, true)
}

// PublishPump reports a pump state transition.
func (p *Publisher) PublishPump(on bool, snap models.Snapshot) {
	msg := pumpMessage{
		ID:        uuid.New().String(),
		DeviceID:  p.deviceID,
		On:        on,
		SoilPct:   snap.SoilPercent,
		Reservoir: snap.ReservoirPresent,
		Timestamp: time.Now(),
	}
	p.publish(fmt.Sprintf("waterctl/%s/pump", p.deviceID), msg, false)
}

func (p *Publisher) publish(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Warn("telemetry: failed to encode message for %s: %v", topic, err)
		return
	}
	token := p.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		logger.Debug("telemetry: publish to %s still pending after %v", topic, publishTimeout)
		return
	}
	if err := token.Error(); err != nil {
		logger.Warn("telemetry: publish to %s failed: %v", topic, err)
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
