// Package util holds container and polling helpers for the integration
// suites. Containers are started with testcontainers and every Start helper
// returns the endpoint URL plus a cleanup function.
package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"
	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	HTTPReadyTimeout      = 5 * time.Second
	MosquittoReadyTimeout = 5 * time.Second
	InfluxStartupTimeout  = 60 * time.Second

	pollInterval = 50 * time.Millisecond

	mosquittoPort nat.Port = "1883/tcp"
	influxPort    nat.Port = "8086/tcp"
)

// WaitForHTTP polls url until it answers 200 or ctx is done.
func WaitForHTTP(ctx context.Context, url string) error {
	_, err := poll(ctx, url, func(status int, _ []byte) bool { return status == http.StatusOK })
	if err != nil {
		return fmt.Errorf("server not ready: %w", err)
	}
	return nil
}

// WaitForMetric polls a Prometheus endpoint until its exposition contains
// substr.
func WaitForMetric(ctx context.Context, metricsURL, substr string) error {
	_, err := poll(ctx, metricsURL, func(_ int, body []byte) bool { return strings.Contains(string(body), substr) })
	if err != nil {
		return fmt.Errorf("metric %q not found: %w", substr, err)
	}
	return nil
}

func poll(ctx context.Context, url string, done func(status int, body []byte) bool) ([]byte, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if resp, err := http.DefaultClient.Do(req); err == nil {
			body, rerr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if rerr == nil && done(resp.StatusCode, body) {
				return body, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// startContainer runs req and returns scheme://host:port for the exposed port.
func startContainer(ctx context.Context, req tc.ContainerRequest, port nat.Port, scheme string) (string, func(), error) {
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = cont.Terminate(context.Background()) }
	host, err := cont.Host(ctx)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	mapped, err := cont.MappedPort(ctx, port)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	return fmt.Sprintf("%s://%s:%s", scheme, host, mapped.Port()), cleanup, nil
}

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
connection_messages true
`

// StartMosquitto launches an anonymous Mosquitto broker and waits until it
// accepts MQTT connections.
func StartMosquitto(ctx context.Context) (string, func(), error) {
	dir, err := os.MkdirTemp("", "mosq")
	if err != nil {
		return "", nil, err
	}
	path := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(path, []byte(mosquittoConf), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}

	broker, stop, err := startContainer(ctx, tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{string(mosquittoPort)},
		WaitingFor:   wait.ForListeningPort(mosquittoPort),
		Files: []tc.ContainerFile{{
			HostFilePath:      path,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}, mosquittoPort, "tcp")
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}
	cleanup := func() {
		stop()
		_ = os.RemoveAll(dir)
	}

	waitCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	if err := waitForMQTTReady(waitCtx, broker); err != nil {
		cleanup()
		return "", nil, err
	}
	return broker, cleanup, nil
}

func waitForMQTTReady(ctx context.Context, broker string) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("homesim-ready")
	for {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// InfluxSetup is the org, bucket and admin token an InfluxDB container is
// initialised with.
type InfluxSetup struct {
	Org    string
	Bucket string
	Token  string
}

// StartInflux launches InfluxDB 2.7 in setup mode and returns its base URL.
func StartInflux(ctx context.Context, s InfluxSetup) (string, func(), error) {
	return startContainer(ctx, tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{string(influxPort)},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "homesim",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "homesim-password",
			"DOCKER_INFLUXDB_INIT_ORG":         s.Org,
			"DOCKER_INFLUXDB_INIT_BUCKET":      s.Bucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": s.Token,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort(influxPort).WithStartupTimeout(InfluxStartupTimeout),
	}, influxPort, "http")
}

// Subscribe connects a throwaway client to broker and forwards the payloads
// received on topic. The channel drops messages when full.
func Subscribe(broker, topic string, qos byte) (<-chan []byte, func(), error) {
	out := make(chan []byte, 16)
	cli := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID(fmt.Sprintf("observer-%d", time.Now().UnixNano())))
	if tok := cli.Connect(); !tok.WaitTimeout(MosquittoReadyTimeout) || tok.Error() != nil {
		return nil, nil, fmt.Errorf("observer connect: %v", tok.Error())
	}
	tok := cli.Subscribe(topic, qos, func(_ paho.Client, m paho.Message) {
		select {
		case out <- m.Payload():
		default:
		}
	})
	if !tok.WaitTimeout(MosquittoReadyTimeout) || tok.Error() != nil {
		cli.Disconnect(100)
		return nil, nil, fmt.Errorf("subscribe %s: %v", topic, tok.Error())
	}
	return out, func() { cli.Disconnect(100) }, nil
}
