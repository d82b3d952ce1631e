package dispatch

// Thresholds is the single table of price ($/kWh) and solar (kW) limits
// driving controllable devices. Prices are on the scale of the default
// hourly tariff (0.010 to 0.042).
type Thresholds struct {
	WaterHeater WaterHeaterRule `json:"water_heater"`
	HVAC        HVACRule        `json:"hvac"`
}

// WaterHeaterRule enables heating on cheap power or a sunny roof.
type WaterHeaterRule struct {
	EnablePrice  float64 `json:"enable_price"`
	EnableSolar  float64 `json:"enable_solar"`
	SurplusSolar float64 `json:"surplus_solar"`
	CheapPrice   float64 `json:"cheap_price"`
	PeakPrice    float64 `json:"peak_price"`
	SurplusKW    float64 `json:"surplus_kw"`
	CheapKW      float64 `json:"cheap_kw"`
	NormalKW     float64 `json:"normal_kw"`
}

// HVACRule enables climate control during waking hours when power is
// affordable or the roof produces.
type HVACRule struct {
	FromHour     int     `json:"from_hour"`
	ToHour       int     `json:"to_hour"`
	EnablePrice  float64 `json:"enable_price"`
	EnableSolar  float64 `json:"enable_solar"`
	SurplusSolar float64 `json:"surplus_solar"`
	CheapPrice   float64 `json:"cheap_price"`
	PeakPrice    float64 `json:"peak_price"`
	SurplusKW    float64 `json:"surplus_kw"`
	CheapKW      float64 `json:"cheap_kw"`
	PeakKW       float64 `json:"peak_kw"`
	NormalKW     float64 `json:"normal_kw"`
}

// BatteryRule governs the home battery.
type BatteryRule struct {
	MaxFlowKW      float64 `json:"max_flow_kw"`
	TrickleKW      float64 `json:"trickle_kw"`
	LossFactor     float64 `json:"loss_factor"` // % level per kW per step
	HighPrice      float64 `json:"high_price"`
	LowPrice       float64 `json:"low_price"`
	SolarCeiling   float64 `json:"solar_ceiling"`
	DischargeFloor float64 `json:"discharge_floor"`
	TrickleCeiling float64 `json:"trickle_ceiling"`
}

// DefaultThresholds returns the canonical table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WaterHeater: WaterHeaterRule{
			EnablePrice:  0.025,
			EnableSolar:  3.0,
			SurplusSolar: 4.0,
			CheapPrice:   0.015,
			PeakPrice:    0.030,
			SurplusKW:    4.5,
			CheapKW:      3.5,
			NormalKW:     2.0,
		},
		HVAC: HVACRule{
			FromHour:     6,
			ToHour:       22,
			EnablePrice:  0.030,
			EnableSolar:  2.0,
			SurplusSolar: 3.0,
			CheapPrice:   0.020,
			PeakPrice:    0.035,
			SurplusKW:    2.5,
			CheapKW:      2.0,
			PeakKW:       0.8,
			NormalKW:     1.5,
		},
	}
}

// DefaultBatteryRule returns the battery policy of the default household.
func DefaultBatteryRule() BatteryRule {
	return BatteryRule{
		MaxFlowKW:      2.4,
		TrickleKW:      1.5,
		LossFactor:     0.1,
		HighPrice:      0.030,
		LowPrice:       0.015,
		SolarCeiling:   95,
		DischargeFloor: 20,
		TrickleCeiling: 90,
	}
}
