package model

import "testing"

func TestClockDerivation(t *testing.T) {
	cases := []struct {
		step   int
		day    int
		tod    string
		hour   int
		fracHr float64
		ofDay  int
	}{
		{0, 1, "00:00", 0, 0, 0},
		{1, 1, "00:15", 0, 0.25, 1},
		{80, 1, "20:00", 20, 20, 80},
		{95, 1, "23:45", 23, 23.75, 95},
		{96, 2, "00:00", 0, 0, 0},
		{96*3 + 29, 4, "07:15", 7, 7.25, 29},
	}
	for _, c := range cases {
		clk := Clock{Step: c.step}
		if clk.Day() != c.day || clk.TimeOfDay() != c.tod || clk.Hour() != c.hour ||
			clk.FractionalHour() != c.fracHr || clk.StepOfDay() != c.ofDay {
			t.Errorf("step %d: got day=%d tod=%s hour=%d frac=%v sod=%d", c.step,
				clk.Day(), clk.TimeOfDay(), clk.Hour(), clk.FractionalHour(), clk.StepOfDay())
		}
	}
}

func TestClampLevel(t *testing.T) {
	for in, want := range map[float64]float64{-50: 10, 9.99: 10, 45: 45, 100: 100, 1e9: 100} {
		if got := ClampLevel(in); got != want {
			t.Errorf("ClampLevel(%v)=%v want %v", in, got, want)
		}
	}
}

func TestControlLimit(t *testing.T) {
	if got := (Control{}).Limit(2); got != 2 {
		t.Fatalf("zero limit should fall back to max, got %v", got)
	}
	if got := (Control{PowerLimitKW: 0.8}).Limit(2); got != 0.8 {
		t.Fatalf("expected 0.8 got %v", got)
	}
	if got := (Control{PowerLimitKW: 2.5}).Limit(2); got != 2 {
		t.Fatalf("limit above max must not raise the cap, got %v", got)
	}
}

func TestSnapshotCloneDoesNotAlias(t *testing.T) {
	s := Snapshot{Devices: []DeviceSnapshot{{ID: "tv", Active: true}}, Warnings: []string{"w"}}
	c := s.Clone()
	c.Devices[0].Active = false
	c.Warnings[0] = "x"
	if !s.Devices[0].Active || s.Warnings[0] != "w" {
		t.Fatal("clone aliases the original")
	}
}

func TestParseDeviceKind(t *testing.T) {
	for _, k := range []DeviceKind{KindAppliance, KindHVAC, KindWaterHeater, KindEV} {
		got, err := ParseDeviceKind(k.String())
		if err != nil || got != k {
			t.Fatalf("round trip %v: %v %v", k, got, err)
		}
	}
	if _, err := ParseDeviceKind("toaster"); err == nil {
		t.Fatal("expected error")
	}
}
