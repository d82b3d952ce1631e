package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/homesim/core/model"
	coremon "github.com/kilianp07/homesim/core/monitoring"
	"github.com/kilianp07/homesim/core/simulation"
	"github.com/kilianp07/homesim/infra/logger"
)

// DefaultTopicPrefix is used when Config.TopicPrefix is empty.
const DefaultTopicPrefix = "homesim"

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	TopicPrefix string          `json:"topic_prefix"`
	Retain      bool            `json:"retain"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	AuthMethod  string          `json:"auth_method"`
	QoS         map[string]byte `json:"qos"`
	LWTTopic    string          `json:"lwt_topic"`
	LWTPayload  string          `json:"lwt_payload"`
	LWTQoS      byte            `json:"lwt_qos"`
	LWTRetain   bool            `json:"lwt_retain"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	TLSConfig   *tls.Config     `json:"-"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// ControlHandler receives commands published on <prefix>/<session>/control.
type ControlHandler func(sessionID string, cmd simulation.Command)

// Publisher publishes snapshots on <prefix>/<session>/snapshot and day
// summaries on <prefix>/<session>/day.
type Publisher struct {
	cli        pahoClient
	prefix     string
	retain     bool
	qos        map[string]byte
	maxRetries int
	backoff    time.Duration
	logger     logger.Logger

	mu      sync.RWMutex
	control ControlHandler
}

// NewPublisher connects to the broker. Commands received on the control
// topics are dropped until OnControl installs a handler.
func NewPublisher(cfg Config) (*Publisher, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_publisher")
	p := &Publisher{
		prefix:     cfg.TopicPrefix,
		retain:     cfg.Retain,
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		logger:     log,
	}
	if p.prefix == "" {
		p.prefix = DefaultTopicPrefix
	}
	if p.maxRetries <= 0 {
		p.maxRetries = 3
	}
	if p.backoff <= 0 {
		p.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		topic := p.prefix + "/+/control"
		if token := c.Subscribe(topic, p.qosFor("control"), p.onControl); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe %s: %v", topic, token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	p.cli = c
	return p, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *Publisher) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

// SnapshotTopic returns the topic snapshots of a session are published on.
func (p *Publisher) SnapshotTopic(sessionID string) string {
	return fmt.Sprintf("%s/%s/snapshot", p.prefix, sessionID)
}

// RecordSnapshot publishes the snapshot as JSON.
func (p *Publisher) RecordSnapshot(sessionID string, snap model.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return p.publish(sessionID, p.SnapshotTopic(sessionID), p.qosFor("snapshot"), payload)
}

// RecordDaySummary publishes the totals of a completed day.
func (p *Publisher) RecordDaySummary(sessionID string, sum simulation.DaySummary) error {
	payload, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s/day", p.prefix, sessionID)
	return p.publish(sessionID, topic, p.qosFor("day"), payload)
}

func (p *Publisher) publish(sessionID, topic string, qos byte, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, p.retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Debugf("published %d bytes to %s", len(payload), topic)
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	coremon.CaptureException(publishErr, map[string]string{"session_id": sessionID, "module": "mqtt"})
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// OnControl installs the handler for control commands.
func (p *Publisher) OnControl(h ControlHandler) {
	p.mu.Lock()
	p.control = h
	p.mu.Unlock()
}

func (p *Publisher) onControl(_ paho.Client, msg paho.Message) {
	sessionID, ok := sessionFromTopic(p.prefix, msg.Topic())
	if !ok {
		p.logger.Warnf("ignoring control message on %s", msg.Topic())
		return
	}
	cmd, err := ParseCommand(msg.Payload())
	if err != nil {
		p.logger.Errorf("failed to decode control command: %v", err)
		return
	}
	p.mu.RLock()
	h := p.control
	p.mu.RUnlock()
	if h == nil {
		return
	}
	p.logger.Infof("control %s for session %s", cmd.Action, sessionID)
	h(sessionID, cmd)
}

// ParseCommand decodes and validates a control payload.
func ParseCommand(data []byte) (simulation.Command, error) {
	var cmd simulation.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("decode control: %w", err)
	}
	return cmd, cmd.Validate()
}

func sessionFromTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", false
	}
	id, suffix, ok := strings.Cut(rest, "/")
	if !ok || suffix != "control" || id == "" {
		return "", false
	}
	return id, true
}

// Close gracefully closes the MQTT connection.
func (p *Publisher) Close() error {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
	return nil
}
