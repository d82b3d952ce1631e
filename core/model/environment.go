package model

// EnvironmentSample holds the exogenous inputs for one step.
type EnvironmentSample struct {
	SolarKW      float64 `json:"solar"`
	PricePerKWh  float64 `json:"price"`
	OutdoorTempC float64 `json:"outdoorTemp"`
}

// Conditions is what a device model sees of the world during one step.
type Conditions struct {
	Clock       Clock
	Environment EnvironmentSample
}
