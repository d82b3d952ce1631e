package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/homesim/core/device"
	"github.com/kilianp07/homesim/core/scheduler"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `simulation:
  seed: 42
  tick_interval: 250ms
  sessions: 2
  auto_start: true
devices:
  definitions:
    - id: hvac
      kind: hvac
      max_power: 3.5
    - id: sauna
      kind: appliance
      rated_power: 6
dispatch:
  thresholds:
    water_heater:
      peak_price: 0.04
logging:
  level: debug
api:
  address: ":9000"
metrics:
  prometheus_enabled: true
sinks:
  - type: "prometheus"
  - type: "jsonl"
    conf:
      path: "/tmp/trace.jsonl"
sentry:
  dsn: ""
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	specs, err := cfg.Devices.Specs()
	if err != nil {
		t.Fatalf("specs: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"seed", cfg.Simulation.Seed, int64(42)},
		{"tick_interval", cfg.Simulation.TickInterval, 250 * time.Millisecond},
		{"sessions", cfg.Simulation.Sessions, 2},
		{"auto_start", cfg.Simulation.AutoStart, true},
		{"device_count", len(specs), len(device.DefaultSpecs()) + 1},
		{"hvac_max", specs[0].MaxPower, 3.5},
		{"wh_peak", cfg.Dispatch.Thresholds.WaterHeater.PeakPrice, 0.04},
		{"wh_cheap_kept", cfg.Dispatch.Thresholds.WaterHeater.CheapPrice, 0.015},
		{"battery_kept", cfg.Dispatch.Battery.TrickleKW, 1.5},
		{"level", cfg.Logging.Level, "debug"},
		{"api", cfg.API.Address, ":9000"},
		{"cors_default", cfg.API.CORSOrigins[0], "*"},
		{"prom", cfg.Metrics.PrometheusEnabled, true},
		{"sinks", len(cfg.Sinks), 2},
		{"sink_conf", cfg.Sinks[1].Conf["path"], "/tmp/trace.jsonl"},
		{"prices_default", len(cfg.Environment.Prices), 24},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadJSONWithEnvOverride(t *testing.T) {
	path := writeFile(t, "config.json", `{"api": {"address": ":7000"}, "logging": {"level": "warn"}}`)
	t.Setenv("HOMESIM_API__ADDRESS", ":7100")
	t.Setenv("HOMESIM_SIMULATION__SEED", "9")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.API.Address != ":7100" {
		t.Errorf("env override not applied: %s", cfg.API.Address)
	}
	if cfg.Simulation.Seed != 9 {
		t.Errorf("env seed not applied: %d", cfg.Simulation.Seed)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("file level lost: %s", cfg.Logging.Level)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Simulation.TickInterval != time.Second || cfg.API.Address != ":8080" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	cat, err := cfg.Scheduler.Catalog()
	if err != nil || len(cat) == 0 {
		t.Fatalf("default catalog: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"unknown device": `devices:
  definitions:
    - id: sauna
`,
		"kind mismatch": `devices:
  definitions:
    - id: hvac
      kind: ev
`,
		"bad level": `logging:
  level: loud
`,
		"bad tick": `simulation:
  tick_interval: -1s
`,
		"short prices": `environment:
  prices: [0.1, 0.2]
`,
		"sink type": `sinks:
  - conf: {}
`,
		"hvac hours": `dispatch:
  thresholds:
    hvac:
      from_hour: 23
      to_hour: 6
`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeFile(t, "c.yaml", data)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := Load(writeFile(t, "c.toml", "")); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestSchedulerCatalogInline(t *testing.T) {
	c := SchedulerConfig{Appliances: nil}
	if _, err := c.Catalog(); err != nil {
		t.Fatalf("default: %v", err)
	}
	c = SchedulerConfig{CatalogFile: "x.yaml", Appliances: []scheduler.EntryConfig{{ID: "tv", Strategy: "flexible"}}}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected exclusive error")
	}
}
