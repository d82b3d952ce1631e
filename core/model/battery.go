package model

// BatteryStatus describes the current battery flow direction.
type BatteryStatus string

const (
	BatteryIdle        BatteryStatus = "idle"
	BatteryCharging    BatteryStatus = "charging"
	BatteryDischarging BatteryStatus = "discharging"
)

const (
	// BatteryMinLevel and BatteryMaxLevel bound LevelPercent.
	BatteryMinLevel = 10.0
	BatteryMaxLevel = 100.0
)

// BatteryState is the home battery, owned by dispatch.
type BatteryState struct {
	LevelPercent float64       `json:"level"`
	PowerKW      float64       `json:"power"` // +charge / -discharge
	Status       BatteryStatus `json:"status"`
}

// ClampLevel bounds a level to [BatteryMinLevel, BatteryMaxLevel].
func ClampLevel(level float64) float64 {
	if level < BatteryMinLevel {
		return BatteryMinLevel
	}
	if level > BatteryMaxLevel {
		return BatteryMaxLevel
	}
	return level
}
