package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/homesim/core/model"
	"github.com/kilianp07/homesim/core/simulation"
	"github.com/kilianp07/homesim/core/sink"
	"github.com/kilianp07/homesim/infra/logger"
)

// InfluxConfig locates the bucket receiving snapshots.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes snapshots to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
	now      func() time.Time
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
		now:      time.Now,
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) sink.Sink {
	s := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := s.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			s.log.Errorf("influx health check error: %v", err)
		} else {
			s.log.Errorf("influx health status: %s", health.Status)
		}
		s.client.Close()
		return sink.NopSink{}
	}
	return s
}

// RecordSnapshot writes one household point and one point per device.
func (s *InfluxSink) RecordSnapshot(sessionID string, snap model.Snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ts := s.now()
	points := make([]*write.Point, 0, len(snap.Devices)+1)
	points = append(points, householdPoint(sessionID, snap, ts))
	for _, d := range snap.Devices {
		points = append(points, devicePoint(sessionID, d, ts))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordDaySummary writes the totals of a completed day.
func (s *InfluxSink) RecordDaySummary(sessionID string, sum simulation.DaySummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("day_summary").
		AddTag("session_id", sessionID).
		AddTag("day", strconv.Itoa(sum.Day)).
		AddField("demand_kwh", round3(sum.DemandKWh)).
		AddField("solar_kwh", round3(sum.SolarKWh)).
		AddField("import_kwh", round3(sum.ImportKWh)).
		AddField("cost", round3(sum.Cost)).
		AddField("mean_price", round3(sum.MeanPrice)).
		AddField("peak_import_kw", round3(sum.PeakImportKW)).
		SetTime(s.now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func householdPoint(sessionID string, snap model.Snapshot, ts time.Time) *write.Point {
	return write.NewPointWithMeasurement("household_snapshot").
		AddTag("session_id", sessionID).
		AddTag("battery_status", string(snap.Battery.Status)).
		AddField("step", snap.Step).
		AddField("day", snap.Day).
		AddField("solar_kw", round3(snap.Environment.SolarKW)).
		AddField("price", round3(snap.Environment.PricePerKWh)).
		AddField("outdoor_temp_c", round3(snap.Environment.OutdoorTempC)).
		AddField("battery_level", round3(snap.Battery.LevelPercent)).
		AddField("battery_power_kw", round3(snap.Battery.PowerKW)).
		AddField("house_demand_kw", round3(snap.HouseDemand)).
		AddField("grid_import_kw", round3(snap.GridImport)).
		SetTime(ts)
}

func devicePoint(sessionID string, d model.DeviceSnapshot, ts time.Time) *write.Point {
	p := write.NewPointWithMeasurement("device_power").
		AddTag("session_id", sessionID).
		AddTag("device_id", d.ID).
		AddTag("kind", d.Kind).
		AddField("power_kw", round3(d.PowerKW)).
		AddField("active", d.Active)
	if d.Kind != model.KindAppliance.String() {
		p = p.AddField("level", round3(d.Level))
	}
	return p.SetTime(ts)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
