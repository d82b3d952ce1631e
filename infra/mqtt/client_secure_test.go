package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/homesim/core/model"
	coremon "github.com/kilianp07/homesim/core/monitoring"
	"github.com/kilianp07/homesim/core/simulation"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0644); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(caFile, certPEM, 0644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

func withMockClient(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func testSnapshot() model.Snapshot {
	return model.Snapshot{
		Step:      1,
		Day:       1,
		TimeOfDay: "00:15",
		Battery:   model.BatteryState{LevelPercent: 45.15, PowerKW: 1.5, Status: model.BatteryCharging},
	}
}

func TestQoSSettings(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", QoS: map[string]byte{"snapshot": 2, "control": 1}}
	pub, err := NewPublisher(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if len(mc.subscribed) == 0 || mc.subscribed[0].qos != 1 || mc.subscribed[0].topic != "homesim/+/control" {
		t.Fatalf("control subscription not applied: %+v", mc.subscribed)
	}
	if err := pub.RecordSnapshot("abc", testSnapshot()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.published) != 1 || mc.published[0].qos != 2 {
		t.Fatalf("publish qos not applied")
	}
	if mc.published[0].topic != "homesim/abc/snapshot" {
		t.Fatalf("unexpected topic %s", mc.published[0].topic)
	}
	var got model.Snapshot
	if err := json.Unmarshal(mc.published[0].payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.TimeOfDay != "00:15" || got.Battery.LevelPercent != 45.15 {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestDaySummaryTopic(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	pub, err := NewPublisher(Config{Broker: "tcp://localhost:1883", ClientID: "id", TopicPrefix: "house1"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := pub.RecordDaySummary("abc", simulation.DaySummary{Day: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if mc.published[0].topic != "house1/abc/day" {
		t.Fatalf("unexpected topic %s", mc.published[0].topic)
	}
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	pub, err := NewPublisher(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "lwt" || string(mc.opts.WillPayload) != "bye" {
		t.Fatalf("will options incorrect")
	}
	_ = pub.Close()
	if len(mc.published) != 0 {
		t.Fatalf("unexpected publish on disconnect")
	}
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	withMockClient(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1}
	pub, err := NewPublisher(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := pub.RecordSnapshot("abc", testSnapshot()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected retries")
	}
}

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) CapturePanic(any)    {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestPublishErrorCaptured(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail}}
	withMockClient(t, mc)
	mon := &recordMonitor{}
	prev := coremon.Init(mon)
	defer coremon.Init(prev)

	pub, err := NewPublisher(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	err = pub.RecordSnapshot("abc", testSnapshot())
	if !errors.Is(err, fail) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
	if mon.err == nil {
		t.Fatalf("error not captured")
	}
	if mon.tags["session_id"] != "abc" || mon.tags["module"] != "mqtt" {
		t.Fatalf("tags not set")
	}
}

func TestControlMessages(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	pub, err := NewPublisher(Config{Broker: "tcp://localhost:1883", ClientID: "id"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	// no handler yet: dropped
	pub.onControl(nil, mockMessage{topic: "homesim/abc/control", p: []byte(`{"action":"start"}`)})

	var gotID string
	var got []simulation.Command
	pub.OnControl(func(id string, cmd simulation.Command) {
		gotID = id
		got = append(got, cmd)
	})
	pub.onControl(nil, mockMessage{topic: "homesim/abc/control", p: []byte(`{"action":"override","device":"dishwasher","active":true}`)})
	pub.onControl(nil, mockMessage{topic: "homesim/abc/control", p: []byte(`{"action":"override"}`)})
	pub.onControl(nil, mockMessage{topic: "homesim/abc/snapshot", p: []byte(`{"action":"stop"}`)})
	pub.onControl(nil, mockMessage{topic: "homesim/abc/control", p: []byte(`not json`)})

	if len(got) != 1 {
		t.Fatalf("expected one accepted command, got %+v", got)
	}
	if gotID != "abc" || got[0].Device != "dishwasher" || !got[0].Active {
		t.Fatalf("unexpected command %s %+v", gotID, got[0])
	}
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		payload string
		ok      bool
	}{
		{`{"action":"start"}`, true},
		{`{"action":"reset"}`, true},
		{`{"action":"clear","device":"tv"}`, true},
		{`{"action":"clear"}`, false},
		{`{"action":"explode"}`, false},
		{`{`, false},
	}
	for _, c := range cases {
		_, err := ParseCommand([]byte(c.payload))
		if (err == nil) != c.ok {
			t.Errorf("%s: unexpected error state %v", c.payload, err)
		}
	}
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts       *paho.ClientOptions
	subscribed []struct {
		topic string
		qos   byte
	}
	published []struct {
		topic   string
		qos     byte
		payload []byte
	}
	publishErrs []error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	b, _ := payload.([]byte)
	m.published = append(m.published, struct {
		topic   string
		qos     byte
		payload []byte
	}{topic, qos, b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, _ paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
