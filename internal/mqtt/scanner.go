// Package mqtt receives scans from ward stations that publish over MQTT.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"wardtrack-server/internal/config"
	"wardtrack-server/internal/qr"
	"wardtrack-server/internal/scan"
)

// ErrBadTopic is returned for topics that do not name a ward.
var ErrBadTopic = errors.New("topic does not match wards/{ward}/scans")

// Processor runs the scan pipeline.
type Processor interface {
	Process(ctx context.Context, ev scan.ScanEvent) (scan.Result, error)
}

// ScanMessage is the payload a ward station publishes.
type ScanMessage struct {
	RawTag     string     `json:"rawTag"`
	ScannedBy  string     `json:"scannedBy"`
	TagType    string     `json:"tagType,omitempty"`
	LastScanAt *time.Time `json:"lastScanAt,omitempty"`
}

// Subscriber feeds scans from the broker into the pipeline.
type Subscriber struct {
	client    paho.Client
	topic     string
	qos       byte
	processor Processor
	logger    *zap.Logger
}

// NewSubscriber creates a subscriber. It does not connect until Start.
func NewSubscriber(cfg config.MQTTConfig, processor Processor, logger *zap.Logger) *Subscriber {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	return &Subscriber{
		client:    paho.NewClient(opts),
		topic:     cfg.Topic,
		qos:       cfg.QoS,
		processor: processor,
		logger:    logger,
	}
}

// Start connects and subscribes. Messages are processed with ctx until Stop.
func (s *Subscriber) Start(ctx context.Context) error {
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	token := s.client.Subscribe(s.topic, s.qos, func(_ paho.Client, msg paho.Message) {
		if err := s.HandleMessage(ctx, msg.Topic(), msg.Payload()); err != nil {
			s.logger.Warn("Scan message rejected",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", s.topic, token.Error())
	}
	s.logger.Info("Subscribed to ward scanners", zap.String("topic", s.topic))
	return nil
}

// Stop unsubscribes and disconnects.
func (s *Subscriber) Stop() {
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.topic).Wait()
		s.client.Disconnect(250)
	}
}

// HandleMessage decodes one station message and processes the scan. Stations
// have no reply channel, so outcomes are logged.
func (s *Subscriber) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	ward, err := WardFromTopic(topic)
	if err != nil {
		return err
	}
	var msg ScanMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decode scan message: %w", err)
	}
	tagType, err := qr.ParseTagType(msg.TagType)
	if err != nil {
		return err
	}

	ev := scan.ScanEvent{
		RawTag:     msg.RawTag,
		Ward:       ward,
		ScannedBy:  msg.ScannedBy,
		TagType:    tagType,
		LastScanAt: msg.LastScanAt,
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	res, err := s.processor.Process(ctx, ev)
	if err != nil {
		return err
	}
	s.logger.Info("Scan recorded from station",
		zap.String("ward", ward),
		zap.String("scan_id", res.Entry.ID),
		zap.Bool("authoritative", res.Authoritative),
		zap.Bool("inconsistency", res.Inconsistency != nil),
	)
	return nil
}

// WardFromTopic extracts the ward from a topic ending in {ward}/scans.
func WardFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[len(parts)-1] != "scans" || parts[len(parts)-2] == "" {
		return "", fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}
	return parts[len(parts)-2], nil
}
