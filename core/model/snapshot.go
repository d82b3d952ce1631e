package model

// DeviceSnapshot is the published view of one device.
type DeviceSnapshot struct {
	ID      string  `json:"id"`
	Kind    string  `json:"kind"`
	Active  bool    `json:"active"`
	PowerKW float64 `json:"power"`
	Level   float64 `json:"level,omitempty"`
}

// Snapshot is the read-only projection published once per tick.
type Snapshot struct {
	Step        int               `json:"step"`
	Day         int               `json:"day"`
	TimeOfDay   string            `json:"timeOfDay"`
	Environment EnvironmentSample `json:"environment"`
	Devices     []DeviceSnapshot  `json:"devices"`
	Battery     BatteryState      `json:"battery"`
	HouseDemand float64           `json:"houseDemand"`
	GridImport  float64           `json:"gridImport"`
	Running     bool              `json:"running"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// Clone returns a deep copy that shares no slices with s.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Devices != nil {
		out.Devices = make([]DeviceSnapshot, len(s.Devices))
		copy(out.Devices, s.Devices)
	}
	if s.Warnings != nil {
		out.Warnings = make([]string, len(s.Warnings))
		copy(out.Warnings, s.Warnings)
	}
	return out
}

// Device looks up a device by id.
func (s Snapshot) Device(id string) (DeviceSnapshot, bool) {
	for _, d := range s.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return DeviceSnapshot{}, false
}
