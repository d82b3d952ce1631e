package simulation

import (
	"github.com/kilianp07/homesim/core/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Totals accumulates energy and cost since the last reset.
type Totals struct {
	Steps             int     `json:"steps"`
	DemandKWh         float64 `json:"demand_kwh"`
	SolarKWh          float64 `json:"solar_kwh"`
	ImportKWh         float64 `json:"import_kwh"`
	BatteryChargedKWh float64 `json:"battery_charged_kwh"`
	BatteryDrainedKWh float64 `json:"battery_drained_kwh"`
	Cost              float64 `json:"cost"`
}

// Add accounts for one published step.
func (t *Totals) Add(s model.Snapshot) {
	t.Steps++
	t.DemandKWh += s.HouseDemand * model.StepHours
	t.SolarKWh += s.Environment.SolarKW * model.StepHours
	t.ImportKWh += s.GridImport * model.StepHours
	t.Cost += s.GridImport * model.StepHours * s.Environment.PricePerKWh
	if s.Battery.PowerKW > 0 {
		t.BatteryChargedKWh += s.Battery.PowerKW * model.StepHours
	} else {
		t.BatteryDrainedKWh -= s.Battery.PowerKW * model.StepHours
	}
}

// DaySummary condenses one simulated day.
type DaySummary struct {
	Day          int     `json:"day"`
	Steps        int     `json:"steps"`
	DemandKWh    float64 `json:"demand_kwh"`
	SolarKWh     float64 `json:"solar_kwh"`
	ImportKWh    float64 `json:"import_kwh"`
	Cost         float64 `json:"cost"`
	MeanPrice    float64 `json:"mean_price"`
	PeakImportKW float64 `json:"peak_import_kw"`
	PeakDemandKW float64 `json:"peak_demand_kw"`
}

// dayLog collects the per-step series of the running day.
type dayLog struct {
	day     int
	prices  []float64
	imports []float64
	demand  []float64
	solar   []float64
}

func (d *dayLog) add(s model.Snapshot) {
	d.day = s.Day
	d.prices = append(d.prices, s.Environment.PricePerKWh)
	d.imports = append(d.imports, s.GridImport)
	d.demand = append(d.demand, s.HouseDemand)
	d.solar = append(d.solar, s.Environment.SolarKW)
}

func (d *dayLog) empty() bool { return len(d.prices) == 0 }

func (d *dayLog) reset() { *d = dayLog{} }

func (d *dayLog) summary() DaySummary {
	out := DaySummary{Day: d.day, Steps: len(d.prices)}
	if d.empty() {
		return out
	}
	out.DemandKWh = floats.Sum(d.demand) * model.StepHours
	out.SolarKWh = floats.Sum(d.solar) * model.StepHours
	out.ImportKWh = floats.Sum(d.imports) * model.StepHours
	out.Cost = floats.Dot(d.imports, d.prices) * model.StepHours
	out.MeanPrice = stat.Mean(d.prices, nil)
	out.PeakImportKW = floats.Max(d.imports)
	out.PeakDemandKW = floats.Max(d.demand)
	return out
}
