package sink

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/jake-scott/ondus-bridge/internal/pkg/logging"
	"github.com/jake-scott/ondus-bridge/internal/pkg/monitor"
)

const (
	defaultMQTTTimeout       = 10 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	maxQoS                   = 2
)

type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Retain      bool
	Timeout     time.Duration
}

// MQTT publishes each report as retained JSON on
// <prefix>/<location>/<room>/<appliance>
type MQTT struct {
	client pahomqtt.Client
	cfg    MQTTConfig
}

func (c MQTTConfig) statusTopic() string {
	return c.TopicPrefix + "/status"
}

func (c MQTTConfig) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultMQTTTimeout
}

func buildClientOptions(cfg MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.timeout())

	// the broker announces us offline if we drop off
	opts.SetWill(cfg.statusTopic(), "offline", 1, true)

	return opts
}

// ConnectMQTT connects to the broker and announces the bridge online
func ConnectMQTT(cfg MQTTConfig) (*MQTT, error) {
	if cfg.QoS > maxQoS {
		return nil, errors.Errorf("invalid MQTT QoS %d", cfg.QoS)
	}

	client := pahomqtt.NewClient(buildClientOptions(cfg))
	token := client.Connect()
	if !token.WaitTimeout(cfg.timeout()) {
		return nil, errors.Wrapf(ErrConnectionFailed, "MQTT connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(ErrConnectionFailed, "MQTT connect to %s: %v", cfg.Broker, err)
	}

	m := NewMQTT(client, cfg)
	if err := m.publish(cfg.statusTopic(), []byte("online"), true); err != nil {
		client.Disconnect(defaultDisconnectQuiesce)
		return nil, err
	}

	logging.Logger(nil).Infof("connected to MQTT broker %s", cfg.Broker)
	return m, nil
}

// NewMQTT wraps an already connected client
func NewMQTT(client pahomqtt.Client, cfg MQTTConfig) *MQTT {
	return &MQTT{client: client, cfg: cfg}
}

// topicLevel makes a name safe for use as one topic level
func topicLevel(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', ' ', '\t':
			return '_'
		}
		return r
	}, name)
}

// Topic is where the report for an appliance is published
func (m *MQTT) Topic(report *monitor.Report) string {
	return strings.Join([]string{
		m.cfg.TopicPrefix,
		topicLevel(report.Location),
		topicLevel(report.Room),
		topicLevel(report.Appliance),
	}, "/")
}

func (m *MQTT) publish(topic string, payload []byte, retain bool) error {
	if !m.client.IsConnected() {
		return ErrNotConnected
	}

	token := m.client.Publish(topic, m.cfg.QoS, retain, payload)
	if !token.WaitTimeout(m.cfg.timeout()) {
		return errors.Wrapf(ErrPublishFailed, "MQTT publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(ErrPublishFailed, "MQTT publish to %s: %v", topic, err)
	}

	return nil
}

func (m *MQTT) Publish(ctx context.Context, report *monitor.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return errors.Wrap(err, "encoding report")
	}

	topic := m.Topic(report)
	logging.Logger(ctx).Debugf("publishing %d bytes to %s", len(payload), topic)

	return m.publish(topic, payload, m.cfg.Retain)
}

// Close announces the bridge offline and disconnects
func (m *MQTT) Close() error {
	if m.client.IsConnected() {
		token := m.client.Publish(m.cfg.statusTopic(), m.cfg.QoS, true, []byte("offline"))
		token.WaitTimeout(m.cfg.timeout())
	}

	m.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}
