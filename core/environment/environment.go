// Package environment supplies the exogenous inputs of every step: solar
// production, outdoor temperature and the electricity price.
package environment

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/kilianp07/homesim/core/model"
)

// ErrSampleMissing is returned when a provider has no sample for a step.
var ErrSampleMissing = errors.New("environment sample missing")

// Provider returns the environment of a step.
type Provider interface {
	Sample(step int) (model.EnvironmentSample, error)
}

// Value bounds applied to every sample.
const (
	MinSolarKW = 0.0
	MaxSolarKW = 6.0
	MinTempC   = -10.0
	MaxTempC   = 40.0
	MinPrice   = 0.0
	MaxPrice   = 0.5
)

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Clamp bounds every field of s to its physical range.
func Clamp(s model.EnvironmentSample) model.EnvironmentSample {
	return model.EnvironmentSample{
		SolarKW:      clamp(s.SolarKW, MinSolarKW, MaxSolarKW),
		OutdoorTempC: clamp(s.OutdoorTempC, MinTempC, MaxTempC),
		PricePerKWh:  clamp(s.PricePerKWh, MinPrice, MaxPrice),
	}
}

// Profile is a repeating 24 hour environment built from hourly tables.
type Profile struct {
	Prices []float64 `json:"prices"`
	Solar  []float64 `json:"solar"`
	// TempMeanC and TempAmplitudeC shape a sinusoid peaking at 15:00.
	TempMeanC      float64 `json:"temp_mean_c"`
	TempAmplitudeC float64 `json:"temp_amplitude_c"`
	// SolarJitterKW adds uniform noise of this total width to solar output.
	SolarJitterKW float64 `json:"solar_jitter_kw"`
	Seed          int64   `json:"seed"`
}

// DefaultProfile returns a summer day with a time-of-use tariff.
func DefaultProfile() Profile {
	return Profile{
		Prices: []float64{
			0.012, 0.011, 0.010, 0.010, 0.011, 0.015,
			0.018, 0.022, 0.025, 0.023, 0.020, 0.018,
			0.020, 0.022, 0.025, 0.028, 0.035, 0.038,
			0.042, 0.038, 0.028, 0.022, 0.018, 0.015,
		},
		Solar: []float64{
			0, 0, 0, 0, 0, 0.1,
			0.5, 1.2, 2.8, 4.1, 4.8, 5.0,
			4.9, 4.5, 3.8, 2.9, 1.8, 0.8,
			0.3, 0.1, 0, 0, 0, 0,
		},
		TempMeanC:      20,
		TempAmplitudeC: 8,
	}
}

// Validate checks the hourly tables.
func (p Profile) Validate() error {
	if len(p.Prices) != 24 {
		return fmt.Errorf("price table needs 24 hourly values, got %d", len(p.Prices))
	}
	if len(p.Solar) != 24 {
		return fmt.Errorf("solar table needs 24 hourly values, got %d", len(p.Solar))
	}
	if p.SolarJitterKW < 0 {
		return fmt.Errorf("solar_jitter_kw must not be negative")
	}
	return nil
}

// Sample implements Provider. The result only depends on the step and the
// seed, so replaying a step yields the same sample.
func (p Profile) Sample(step int) (model.EnvironmentSample, error) {
	if step < 0 {
		return model.EnvironmentSample{}, fmt.Errorf("step %d: %w", step, ErrSampleMissing)
	}
	if err := p.Validate(); err != nil {
		return model.EnvironmentSample{}, err
	}
	c := model.Clock{Step: step}
	h := c.Hour()
	solar := p.Solar[h]
	if p.SolarJitterKW > 0 {
		rng := rand.New(rand.NewSource(p.Seed*int64(model.StepsPerDay*366) + int64(step)))
		solar += (rng.Float64() - 0.5) * p.SolarJitterKW
	}
	temp := p.TempMeanC + p.TempAmplitudeC*math.Sin((c.FractionalHour()-9)*math.Pi/12)
	return Clamp(model.EnvironmentSample{
		SolarKW:      solar,
		OutdoorTempC: temp,
		PricePerKWh:  p.Prices[h],
	}), nil
}

// Series replays explicit per-step samples.
type Series struct {
	Samples []model.EnvironmentSample
	// Loop wraps around instead of running out.
	Loop bool
}

// Sample implements Provider.
func (s Series) Sample(step int) (model.EnvironmentSample, error) {
	n := len(s.Samples)
	if step < 0 || n == 0 || (!s.Loop && step >= n) {
		return model.EnvironmentSample{}, fmt.Errorf("step %d: %w", step, ErrSampleMissing)
	}
	return Clamp(s.Samples[step%n]), nil
}
