package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/homesim/core/device"
	"github.com/kilianp07/homesim/core/dispatch"
	"github.com/kilianp07/homesim/core/environment"
	"github.com/kilianp07/homesim/core/scheduler"
)

// SimulationConfig paces the ticker and seeds new sessions.
type SimulationConfig struct {
	Seed int64 `json:"seed"`
	// TickInterval is the wall-clock time between two simulated steps.
	TickInterval time.Duration `json:"tick_interval"`
	// Sessions are created at startup; AutoStart starts them.
	Sessions  int  `json:"sessions"`
	AutoStart bool `json:"auto_start"`
	// MaxSessions bounds sessions created through the API. 0 means no limit.
	MaxSessions int `json:"max_sessions"`
}

func (c *SimulationConfig) SetDefaults() {
	if c.TickInterval == 0 {
		c.TickInterval = time.Second
	}
}

func (c SimulationConfig) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	if c.Sessions < 0 || c.MaxSessions < 0 {
		return fmt.Errorf("session counts must be positive")
	}
	if c.MaxSessions > 0 && c.Sessions > c.MaxSessions {
		return fmt.Errorf("sessions %d exceeds max_sessions %d", c.Sessions, c.MaxSessions)
	}
	return nil
}

// EnvironmentConfig is the hourly profile driving solar, price and outdoor
// temperature.
type EnvironmentConfig struct {
	environment.Profile `json:",squash"`
}

// SetDefaults fills the tables and temperature curve that were left empty.
func (c *EnvironmentConfig) SetDefaults() {
	def := environment.DefaultProfile()
	if len(c.Prices) == 0 {
		c.Prices = def.Prices
	}
	if len(c.Solar) == 0 {
		c.Solar = def.Solar
	}
	if c.TempMeanC == 0 && c.TempAmplitudeC == 0 {
		c.TempMeanC = def.TempMeanC
		c.TempAmplitudeC = def.TempAmplitudeC
	}
}

func (c EnvironmentConfig) Validate() error { return c.Profile.Validate() }

// DevicesConfig overrides built-in device constants.
type DevicesConfig struct {
	Definitions []device.Definition `json:"definitions"`
}

// Specs merges the definitions onto the default household.
func (c DevicesConfig) Specs() ([]device.Spec, error) {
	return device.ApplyDefinitions(device.DefaultSpecs(), c.Definitions)
}

func (c DevicesConfig) Validate() error {
	_, err := c.Specs()
	return err
}

// SchedulerConfig selects the appliance catalog: a separate file, an inline
// list, or the built-in catalog when both are empty.
type SchedulerConfig struct {
	CatalogFile string                  `json:"catalog_file"`
	Appliances  []scheduler.EntryConfig `json:"appliances"`
}

// Catalog resolves the configured catalog.
func (c SchedulerConfig) Catalog() (scheduler.Catalog, error) {
	switch {
	case c.CatalogFile != "":
		return scheduler.LoadCatalog(c.CatalogFile)
	case len(c.Appliances) > 0:
		return scheduler.CatalogConfig{Appliances: c.Appliances}.Catalog()
	default:
		return scheduler.DefaultCatalog(), nil
	}
}

func (c SchedulerConfig) Validate() error {
	if c.CatalogFile != "" && len(c.Appliances) > 0 {
		return fmt.Errorf("catalog_file and appliances are exclusive")
	}
	_, err := c.Catalog()
	return err
}

// DispatchConfig tunes the threshold table and battery rule. Load starts
// from the defaults so a file only needs the values it changes.
type DispatchConfig struct {
	Thresholds dispatch.Thresholds  `json:"thresholds"`
	Battery    dispatch.BatteryRule `json:"battery"`
}

// DefaultDispatch returns the built-in policy settings.
func DefaultDispatch() DispatchConfig {
	p := dispatch.NewPolicy()
	return DispatchConfig{Thresholds: p.Thresholds, Battery: p.Battery}
}

func (c DispatchConfig) Validate() error {
	h := c.Thresholds.HVAC
	if h.FromHour < 0 || h.ToHour > 23 || h.FromHour > h.ToHour {
		return fmt.Errorf("hvac hours %d-%d out of range", h.FromHour, h.ToHour)
	}
	b := c.Battery
	if b.MaxFlowKW <= 0 {
		return fmt.Errorf("battery max_flow_kw must be positive")
	}
	if b.DischargeFloor < 0 || b.SolarCeiling > 100 || b.DischargeFloor > b.SolarCeiling {
		return fmt.Errorf("battery levels must satisfy 0 <= discharge_floor <= solar_ceiling <= 100")
	}
	return nil
}

// Policy builds the dispatch policy.
func (c DispatchConfig) Policy() dispatch.Policy {
	return dispatch.Policy{Thresholds: c.Thresholds, Battery: c.Battery}
}

// APIConfig configures the HTTP control API.
type APIConfig struct {
	Address     string   `json:"address"`
	CORSOrigins []string `json:"cors_origins"`
}

func (c *APIConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
}

func (c APIConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}
	return nil
}

// MetricsConfig controls the Prometheus endpoint. With an empty Address,
// /metrics is served by the API router.
type MetricsConfig struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	Address           string `json:"address"`
}
