package integration

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/splitbill/splitbill-server/internal/models"
	"github.com/splitbill/splitbill-server/internal/storage"
)

// ForwarderService forwards billing events to landlord-configured sinks
type ForwarderService struct {
	nc    *nats.Conn
	store storage.Store

	mqttClients map[uuid.UUID]mqtt.Client
	clientsMu   sync.RWMutex

	httpClient *http.Client
}

// NewForwarderService creates a forwarder service
func NewForwarderService(nc *nats.Conn, store storage.Store) *ForwarderService {
	return &ForwarderService{
		nc:          nc,
		store:       store,
		mqttClients: make(map[uuid.UUID]mqtt.Client),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Start subscribes to billing events and blocks until the context is cancelled
func (s *ForwarderService) Start(ctx context.Context) error {
	sub, err := s.nc.Subscribe("billing.event.*", s.handleBillingEvent)
	if err != nil {
		return fmt.Errorf("subscribe to billing events: %w", err)
	}

	log.Info().Msg("Integration forwarder service started")

	<-ctx.Done()

	sub.Unsubscribe()
	s.closeAllMQTTConnections()

	return nil
}

// BillingEvent mirrors the published billing event payload
type BillingEvent struct {
	Type     string     `json:"type"`
	UserID   uuid.UUID  `json:"userId"`
	TenantID *uuid.UUID `json:"tenantId,omitempty"`
	BillID   *uuid.UUID `json:"billId,omitempty"`
	Period   string     `json:"period,omitempty"`
	Amount   string     `json:"amount,omitempty"`
}

// handleBillingEvent forwards one event to the owner's configured sinks
func (s *ForwarderService) handleBillingEvent(msg *nats.Msg) {
	parts := strings.Split(msg.Subject, ".")
	if len(parts) != 3 {
		return
	}

	userID, err := uuid.Parse(parts[2])
	if err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("Invalid user ID in subject")
		return
	}

	ctx := context.Background()
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get user for billing event")
		return
	}

	var event BillingEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Error().Err(err).Msg("Failed to parse billing event")
		return
	}

	if cfg := s.getWebhookConfig(user); cfg != nil && cfg.Enabled {
		go s.forwardToHTTP(user, cfg, event)
	}

	if cfg := s.getMQTTConfig(user); cfg != nil && cfg.Enabled {
		go s.forwardToMQTT(user, cfg, event)
	}
}

// forwardToHTTP posts the event to the user's webhook
func (s *ForwarderService) forwardToHTTP(user *models.User, config *WebhookConfig, event BillingEvent) {
	jsonData, err := json.Marshal(map[string]interface{}{
		"type":      event.Type,
		"userId":    event.UserID.String(),
		"tenantId":  event.TenantID,
		"billId":    event.BillID,
		"period":    event.Period,
		"amount":    event.Amount,
		"timestamp": time.Now(),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal webhook payload")
		return
	}

	req, err := http.NewRequest("POST", config.Endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create webhook request")
		return
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Error().
			Err(err).
			Str("endpoint", config.Endpoint).
			Msg("Failed to forward event to webhook")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Error().
			Int("status", resp.StatusCode).
			Str("endpoint", config.Endpoint).
			Msg("Webhook forward failed")
	} else {
		log.Debug().
			Str("type", event.Type).
			Str("endpoint", config.Endpoint).
			Msg("Event forwarded to webhook")
	}
}

// forwardToMQTT publishes the event on the user's MQTT topic
func (s *ForwarderService) forwardToMQTT(user *models.User, config *MQTTConfig, event BillingEvent) {
	client := s.getMQTTClient(user.ID)
	if client == nil {
		client = s.createMQTTClient(user.ID, config)
		if client == nil {
			return
		}
	}

	topic := config.TopicPattern
	if topic == "" {
		topic = "splitbill/{user_id}/events"
	}
	topic = strings.ReplaceAll(topic, "{user_id}", user.ID.String())
	topic = strings.ReplaceAll(topic, "{type}", strings.ToLower(event.Type))

	jsonData, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal MQTT payload")
		return
	}

	token := client.Publish(topic, config.QoS, false, jsonData)
	if token.WaitTimeout(5 * time.Second) {
		if err := token.Error(); err != nil {
			log.Error().
				Err(err).
				Str("topic", topic).
				Msg("Failed to publish to MQTT")
		} else {
			log.Debug().
				Str("type", event.Type).
				Str("topic", topic).
				Msg("Event forwarded to MQTT")
		}
	} else {
		log.Error().
			Str("topic", topic).
			Msg("MQTT publish timeout")
	}
}

// getMQTTClient returns a connected client from the pool
func (s *ForwarderService) getMQTTClient(userID uuid.UUID) mqtt.Client {
	s.clientsMu.RLock()
	client, exists := s.mqttClients[userID]
	s.clientsMu.RUnlock()

	if exists && client.IsConnected() {
		return client
	}

	return nil
}

// createMQTTClient connects a new client and caches it
func (s *ForwarderService) createMQTTClient(userID uuid.UUID, config *MQTTConfig) mqtt.Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.BrokerURL)
	opts.SetClientID(fmt.Sprintf("splitbill-user-%s", userID))

	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}

	if config.TLS {
		opts.SetTLSConfig(&tls.Config{
			InsecureSkipVerify: true, // TODO: per-user CA configuration
		})
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().
			Str("userId", userID.String()).
			Msg("MQTT client connected")
	})

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Error().
			Err(err).
			Str("userId", userID.String()).
			Msg("MQTT connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()

	if token.WaitTimeout(10*time.Second) && token.Error() == nil {
		s.clientsMu.Lock()
		s.mqttClients[userID] = client
		s.clientsMu.Unlock()
		return client
	}

	log.Error().
		Err(token.Error()).
		Str("userId", userID.String()).
		Msg("Failed to connect MQTT client")

	return nil
}

// closeAllMQTTConnections closes every pooled client
func (s *ForwarderService) closeAllMQTTConnections() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	for userID, client := range s.mqttClients {
		if client.IsConnected() {
			client.Disconnect(250)
		}
		delete(s.mqttClients, userID)

		log.Info().
			Str("userId", userID.String()).
			Msg("MQTT client disconnected")
	}
}

// Sink configurations live in the user's settings JSON

// WebhookConfig is the per-user webhook sink
type WebhookConfig struct {
	Enabled  bool              `json:"enabled"`
	Endpoint string            `json:"endpoint"`
	Headers  map[string]string `json:"headers"`
}

// MQTTConfig is the per-user MQTT sink
type MQTTConfig struct {
	Enabled      bool   `json:"enabled"`
	BrokerURL    string `json:"brokerUrl"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	TopicPattern string `json:"topicPattern"`
	QoS          byte   `json:"qos"`
	TLS          bool   `json:"tls"`
}

func (s *ForwarderService) getWebhookConfig(user *models.User) *WebhookConfig {
	return decodeSetting[WebhookConfig](user.Settings, "webhook")
}

func (s *ForwarderService) getMQTTConfig(user *models.User) *MQTTConfig {
	return decodeSetting[MQTTConfig](user.Settings, "mqtt")
}

// decodeSetting round-trips a settings entry through JSON into a typed config
func decodeSetting[T any](settings models.Variables, key string) *T {
	raw, ok := settings[key]
	if !ok {
		return nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}

	var cfg T
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil
	}

	return &cfg
}
