package scenarios

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/homesim/core/model"
	"github.com/kilianp07/homesim/core/simulation"
	"github.com/kilianp07/homesim/infra/metrics"
)

// RunScenario drives a fresh session through sc and checks its expectations.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	sess, err := simulation.NewSession(sc.Name, simulation.Options{Seed: sc.Seed})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	sess.Start()

	days := 0
	var last model.Snapshot
	for step := 1; step <= sc.Steps; step++ {
		for _, a := range actionsAt(sc.Actions, step) {
			if err := sess.Apply(a.ToCommand()); err != nil {
				t.Fatalf("step %d %s: %v", step, a.Action, err)
			}
		}
		snap, day := sess.Step()
		if !snap.Running {
			continue
		}
		if snap.Battery.LevelPercent < model.BatteryMinLevel || snap.Battery.LevelPercent > model.BatteryMaxLevel {
			t.Errorf("step %d: battery level %.2f out of bounds", step, snap.Battery.LevelPercent)
		}
		if err := sink.RecordSnapshot(sc.Name, snap); err != nil {
			t.Fatalf("record: %v", err)
		}
		if day != nil {
			days++
			if err := sink.RecordDaySummary(sc.Name, *day); err != nil {
				t.Fatalf("record day: %v", err)
			}
		}
		last = snap
	}

	if got := counterValue(t, reg, "homesim_ticks_total"); int(got) != sc.Expected.Ticks {
		t.Errorf("scenario %s expected %d ticks, got %v", sc.Name, sc.Expected.Ticks, got)
	}
	if days != sc.Expected.Days {
		t.Errorf("scenario %s expected %d closed days, got %d", sc.Name, sc.Expected.Days, days)
	}
	for id, want := range sc.Expected.Devices {
		got, ok := findDevice(last, id)
		if !ok {
			t.Errorf("scenario %s: device %s missing", sc.Name, id)
			continue
		}
		if got.Active != want.Active || math.Abs(got.PowerKW-want.PowerKW) > 1e-9 {
			t.Errorf("scenario %s: device %s got active=%v power=%.3f, want active=%v power=%.3f",
				sc.Name, id, got.Active, got.PowerKW, want.Active, want.PowerKW)
		}
	}
}

func actionsAt(actions []ActionDef, step int) []ActionDef {
	var out []ActionDef
	for _, a := range actions {
		if a.At == step {
			out = append(out, a)
		}
	}
	return out
}

func findDevice(s model.Snapshot, id string) (model.DeviceSnapshot, bool) {
	for _, d := range s.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return model.DeviceSnapshot{}, false
}

func counterValue(t *testing.T, g prometheus.Gatherer, name string) float64 {
	t.Helper()
	mfs, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	total := 0.0
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
