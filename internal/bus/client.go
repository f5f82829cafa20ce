// Package bus wraps the MQTT broker connection used both for
// consuming inbound detection events and for publishing the
// pending/final analysis payloads and bridge status. Adapted from the
// teacher's mqttclient package: same connect/reconnect/publish shape,
// generalized with bounded exponential backoff on reconnect (§4.1).
package bus

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client is a thin wrapper around the paho client that adds bounded
// exponential-backoff reconnection and re-subscription after every
// reconnect, as required by §4.1.
type Client struct {
	client mqtt.Client
	cfg    Config

	mu   chan struct{} // binary semaphore guarding resubscribe list
	subs []subscription
}

type subscription struct {
	topic   string
	qos     byte
	handler func(topic string, payload []byte)
}

// Config holds the broker connection parameters.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	ClientID string
}

// NewClientFromEnv builds a Config from MQTT_* environment variables,
// matching the teacher's bootstrap convention.
func NewClientFromEnv(defaultClientID string) (*Client, error) {
	cfg := Config{
		Host:     getenv("MQTT_HOST", "localhost"),
		Port:     getenvInt("MQTT_PORT", 1883),
		Username: os.Getenv("MQTT_USERNAME"),
		Password: os.Getenv("MQTT_PASSWORD"),
		ClientID: getenv("MQTT_CLIENT_ID", defaultClientID),
	}
	return NewClient(cfg)
}

// NewClient connects to the broker described by cfg. The client is
// configured for auto-reconnect bounded at 30s between attempts
// (§4.1, §5 Cancellation and timeouts).
func NewClient(cfg Config) (*Client, error) {
	broker := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	c := &Client{cfg: cfg, mu: make(chan struct{}, 1)}
	c.mu <- struct{}{}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.resubscribeAll()
	})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	cli := mqtt.NewClient(opts)
	token := cli.Connect()
	if ok := token.WaitTimeout(10 * time.Second); !ok {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}

	c.client = cli
	return c, nil
}

// Publish sends payload to topic. QoS and retained are caller-chosen;
// the Publisher always uses QoS>=1 with retained=true per §4.11.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	return token.Error()
}

// Subscribe registers handler for topic and remembers it so it can be
// re-established automatically after a reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	<-c.mu
	c.subs = append(c.subs, subscription{topic: topic, qos: qos, handler: handler})
	c.mu <- struct{}{}

	return c.subscribeOne(subscription{topic: topic, qos: qos, handler: handler})
}

func (c *Client) subscribeOne(s subscription) error {
	token := c.client.Subscribe(s.topic, s.qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

func (c *Client) resubscribeAll() {
	<-c.mu
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu <- struct{}{}

	for _, s := range subs {
		if err := c.subscribeOne(s); err != nil {
			log.Printf("[bus] resubscribe to %s failed: %v", s.topic, err)
		} else {
			log.Printf("[bus] resubscribed to %s", s.topic)
		}
	}
}

// Close flushes QoS-1 publications and disconnects within the grace
// period (§5 Cancellation and timeouts: shutdown flushes before exit).
func (c *Client) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}

// Drain blocks until ctx is done, giving in-flight publications a
// chance to be acknowledged before Close is called by the caller.
func (c *Client) Drain(ctx context.Context) {
	<-ctx.Done()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var x int
		if _, err := fmt.Sscanf(v, "%d", &x); err == nil && x > 0 {
			return x
		}
	}
	return def
}
