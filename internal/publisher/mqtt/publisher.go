// Package mqtt publishes entities to an MQTT broker using the Home
// Assistant discovery convention, so the scraped locations appear in the
// platform as regular devices with sensors.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/weerwacht/weerwacht/internal/metrics"
	"github.com/weerwacht/weerwacht/internal/weather"
)

// Config holds broker and topic settings.
type Config struct {
	Broker          string
	ClientID        string
	Username        string
	Password        string
	TopicPrefix     string
	DiscoveryPrefix string
	ConnectTimeout  time.Duration
	PublishTimeout  time.Duration
}

// Publisher implements weather.Publisher over an MQTT broker.
type Publisher struct {
	cfg    Config
	client pahomqtt.Client
	logger *zap.Logger
}

// discoveryPayload is the Home Assistant MQTT discovery config message.
type discoveryPayload struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	StateTopic        string          `json:"state_topic"`
	AttributesTopic   string          `json:"json_attributes_topic,omitempty"`
	AvailabilityTopic string          `json:"availability_topic"`
	Icon              string          `json:"icon,omitempty"`
	DeviceClass       string          `json:"device_class,omitempty"`
	Unit              string          `json:"unit_of_measurement,omitempty"`
	EntityCategory    string          `json:"entity_category,omitempty"`
	EnabledByDefault  bool            `json:"enabled_by_default"`
	Device            discoveryDevice `json:"device"`
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// New builds a Publisher; Connect must be called before use.
func New(cfg Config, logger *zap.Logger) *Publisher {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{cfg: cfg, logger: logger}
}

// Connect establishes the broker connection.
func (p *Publisher) Connect(_ context.Context) error {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(p.cfg.Broker)
	opts.SetClientID(p.cfg.ClientID)
	opts.SetUsername(p.cfg.Username)
	opts.SetPassword(p.cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.logger.Warn("mqtt connection lost", zap.Error(err))
	})

	p.client = pahomqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(p.cfg.ConnectTimeout) {
		return fmt.Errorf("mqtt connect timeout to %s", p.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.logger.Info("mqtt connected", zap.String("broker", p.cfg.Broker))
	return nil
}

// Announce publishes one retained discovery config per entity.
func (p *Publisher) Announce(_ context.Context, slug string, entities []weather.Entity) error {
	for i := range entities {
		entity := &entities[i]
		payload := discoveryPayload{
			Name:              entity.Name,
			UniqueID:          entity.UniqueID,
			StateTopic:        p.stateTopic(slug, entity.Key),
			AvailabilityTopic: p.availabilityTopic(slug, entity.Key),
			Icon:              entity.Icon,
			DeviceClass:       entity.DeviceClass,
			Unit:              entity.Unit,
			EnabledByDefault:  !entity.Diagnostic,
			Device: discoveryDevice{
				Identifiers:  []string{p.cfg.TopicPrefix + "_" + slug},
				Name:         entity.Name,
				Manufacturer: "Weerplaza",
				Model:        "weerwacht scraper",
			},
		}
		if entity.Attributes != nil {
			payload.AttributesTopic = p.attributesTopic(slug, entity.Key)
		}
		if entity.Diagnostic {
			payload.EntityCategory = "diagnostic"
		}

		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal discovery for %s: %w", entity.UniqueID, err)
		}
		topic := fmt.Sprintf("%s/sensor/%s/config", p.cfg.DiscoveryPrefix, entity.UniqueID)
		if err := p.send(topic, data, true); err != nil {
			return err
		}
	}
	return nil
}

// Publish sends state, attributes and availability for every entity.
func (p *Publisher) Publish(_ context.Context, slug string, entities []weather.Entity) error {
	for i := range entities {
		entity := &entities[i]

		availability := "offline"
		if entity.Available {
			availability = "online"
		}
		if err := p.send(p.availabilityTopic(slug, entity.Key), []byte(availability), true); err != nil {
			return err
		}

		if entity.State != nil {
			if err := p.send(p.stateTopic(slug, entity.Key), []byte(fmt.Sprint(entity.State)), true); err != nil {
				return err
			}
		}

		if entity.Attributes != nil {
			attrs, err := json.Marshal(entity.Attributes)
			if err != nil {
				return fmt.Errorf("marshal attributes for %s: %w", entity.UniqueID, err)
			}
			if err := p.send(p.attributesTopic(slug, entity.Key), attrs, true); err != nil {
				return err
			}
		}
	}
	metrics.ObservePublish(slug, "mqtt")
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

func (p *Publisher) send(topic string, payload []byte, retained bool) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	token := p.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(p.cfg.PublishTimeout) {
		return fmt.Errorf("mqtt publish timeout on %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) stateTopic(slug, key string) string {
	return fmt.Sprintf("%s/%s/%s/state", p.cfg.TopicPrefix, slug, key)
}

func (p *Publisher) attributesTopic(slug, key string) string {
	return fmt.Sprintf("%s/%s/%s/attributes", p.cfg.TopicPrefix, slug, key)
}

func (p *Publisher) availabilityTopic(slug, key string) string {
	return fmt.Sprintf("%s/%s/%s/availability", p.cfg.TopicPrefix, slug, key)
}
