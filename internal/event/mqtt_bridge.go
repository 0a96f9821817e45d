package event

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"plant-monitor-service/internal/config"
	"plant-monitor-service/internal/database/docstore"
	"plant-monitor-service/internal/models"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// NewMQTTClient connects to the device broker with exponential backoff.
func NewMQTTClient(cfg config.MQTTConfig, maxRetries uint64) (mqtt.Client, error) {
	connAddr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(connAddr)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("Failed to connect to MQTT broker: %v", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithMaxRetries(bo, maxRetries))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	log.Printf("Connected to MQTT broker at %s", connAddr)
	return client, nil
}

// MQTTBridge copies device payloads into the readings document, so the
// synchronizer sees them like any other document update.
type MQTTBridge struct {
	client mqtt.Client
	topic  string
	store  docstore.Store
	now    func() time.Time
}

func NewMQTTBridge(client mqtt.Client, topic string, store docstore.Store) *MQTTBridge {
	return &MQTTBridge{client: client, topic: topic, store: store, now: time.Now}
}

// Run subscribes and blocks until ctx is done.
func (b *MQTTBridge) Run(ctx context.Context) error {
	token := b.client.Subscribe(b.topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		if err := b.HandlePayload(ctx, msg.Payload()); err != nil {
			log.Printf("Error handling device payload on %s: %v", msg.Topic(), err)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("error subscribing to topic %s: %w", b.topic, token.Error())
	}
	log.Printf("Subscribed to device topic %s", b.topic)

	<-ctx.Done()

	b.client.Unsubscribe(b.topic).Wait()
	b.client.Disconnect(250)
	log.Println("MQTT connection is closed")
	return nil
}

// HandlePayload decodes one device JSON payload and writes the readings
// document. Missing fields keep the values of the current document.
func (b *MQTTBridge) HandlePayload(ctx context.Context, payload []byte) error {
	var raw map[string]any
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return fmt.Errorf("invalid device payload: %w", err)
	}

	var prev *models.SensorSnapshot
	if doc, err := b.store.Get(ctx, docstore.ReadingsPath); err == nil && doc.Exists {
		p := models.DecodeSensorSnapshot(doc.Data, nil, b.now())
		prev = &p
	}

	snapshot := models.DecodeSensorSnapshot(raw, prev, b.now())
	if err := b.store.Set(ctx, docstore.ReadingsPath, snapshot.ToDocument()); err != nil {
		return fmt.Errorf("failed to write readings document: %w", err)
	}
	return nil
}
