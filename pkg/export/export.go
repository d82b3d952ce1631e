package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/kilianp07/homesim/core/model"
)

// CSVHeader lists the columns written by CSVWriter.
var CSVHeader = []string{"step", "day", "time", "price", "solar_kw", "outdoor_temp_c", "demand_kw", "grid_import_kw", "battery_level", "battery_power_kw", "battery_status"}

// WriteJSON writes one snapshot per line.
func WriteJSON(w io.Writer, snaps []model.Snapshot) error {
	enc := json.NewEncoder(w)
	for _, s := range snaps {
		if err := enc.Encode(s); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes the household-level columns of snaps with a header row.
func WriteCSV(w io.Writer, snaps []model.Snapshot) error {
	cw := NewCSVWriter(w)
	for _, s := range snaps {
		if err := cw.Write(s); err != nil {
			return err
		}
	}
	return cw.Flush()
}

// CSVWriter streams snapshots as CSV rows. The header is written before the
// first row.
type CSVWriter struct {
	w      *csv.Writer
	header bool
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

func (c *CSVWriter) Write(s model.Snapshot) error {
	if !c.header {
		if err := c.w.Write(CSVHeader); err != nil {
			return err
		}
		c.header = true
	}
	return c.w.Write([]string{
		strconv.Itoa(s.Step),
		strconv.Itoa(s.Day),
		s.TimeOfDay,
		ff(s.Environment.PricePerKWh),
		ff(s.Environment.SolarKW),
		ff(s.Environment.OutdoorTempC),
		ff(s.HouseDemand),
		ff(s.GridImport),
		ff(s.Battery.LevelPercent),
		ff(s.Battery.PowerKW),
		string(s.Battery.Status),
	})
}

// Flush writes buffered rows, emitting the header if nothing was written.
func (c *CSVWriter) Flush() error {
	if !c.header {
		if err := c.w.Write(CSVHeader); err != nil {
			return err
		}
		c.header = true
	}
	c.w.Flush()
	return c.w.Error()
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
