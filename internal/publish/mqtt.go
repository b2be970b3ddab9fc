// Package publish forwards pipeline results to an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
)

const publishTimeout = 5 * time.Second

// Publisher is the part of mqtt.Client used by Sink
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// EventMessage is published for every newly recorded attendance event
type EventMessage struct {
	EventID    int64     `json:"event_id"`
	IdentityID int64     `json:"identity_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	FrameID    string    `json:"frame_id"`
}

// Sink publishes frame results to <prefix>/frames and recorded events to
// <prefix>/events.
type Sink struct {
	client Publisher
	prefix string
	qos    byte
}

// NewSink wraps an already connected publisher.
func NewSink(client Publisher, prefix string) *Sink {
	return &Sink{client: client, prefix: strings.TrimSuffix(prefix, "/"), qos: 1}
}

// FramesTopic returns the topic frame results are published to.
func (s *Sink) FramesTopic() string { return s.prefix + "/frames" }

// EventsTopic returns the topic recorded events are published to.
func (s *Sink) EventsTopic() string { return s.prefix + "/events" }

// Render publishes results of frames containing faces.
func (s *Sink) Render(ctx context.Context, result pipeline.FrameResult) error {
	if len(result.Faces) == 0 {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal frame result: %w", err)
	}
	if err := s.publish(s.FramesTopic(), payload); err != nil {
		return err
	}

	for _, f := range result.Faces {
		if f.Outcome.Kind != attendance.OutcomeRecorded || f.Outcome.Event == nil {
			continue
		}
		msg := EventMessage{
			EventID:    f.Outcome.Event.ID,
			IdentityID: f.Outcome.Event.IdentityID,
			Name:       f.Classification.Identity.DisplayName,
			Status:     string(f.Outcome.Event.Status),
			Timestamp:  f.Outcome.Event.Timestamp,
			FrameID:    result.FrameID.String(),
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		if err := s.publish(s.EventsTopic(), payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) publish(topic string, payload []byte) error {
	token := s.client.Publish(topic, s.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Connect opens a connection to the configured broker.
func Connect(cfg config.MQTTConfig) (mqtt.Client, error) {
	clientID := "face-attendance-" + uuid.New().String()
	log.Printf("[MQTT] connecting to %s with client ID %s", cfg.Broker, clientID)

	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(clientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(30 * time.Second)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(c mqtt.Client) {
		log.Println("[MQTT] connected")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.Printf("[MQTT] connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}
