package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/srg/wstation/internal/device"
	"github.com/srg/wstation/internal/station"
	"github.com/srg/wstation/pkg/config"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const recordTimeLayout = "2006-01-02 15:04:05"

var outOfRange = color.New(color.FgRed, color.Bold)

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// cell right-aligns value to width and highlights it when the sensor reading is implausible.
// Padding comes first so escape sequences never shift the columns.
func cell(value string, width int, ok bool) string {
	padded := fmt.Sprintf("%*s", width, value)
	if ok {
		return padded
	}
	return outOfRange.Sprint(padded)
}

// recordObject keeps a stable key order in JSON output
func recordObject(idx int, r station.WeatherRecord, loc *time.Location) *orderedmap.OrderedMap[string, interface{}] {
	m := orderedmap.New[string, interface{}]()
	m.Set("index", idx)
	m.Set("time", r.Time(loc).Format(time.RFC3339))
	m.Set("temperature", r.Temperature)
	m.Set("pressure", r.Pressure)
	m.Set("humidity", r.Humidity)
	m.Set("in_range", r.TemperatureInRange() && r.PressureInRange() && r.HumidityInRange())
	return m
}

func writeRecords(w io.Writer, format string, records []station.WeatherRecord, loc *time.Location) error {
	switch format {
	case config.FormatJSON:
		out := make([]*orderedmap.OrderedMap[string, interface{}], len(records))
		for i, r := range records {
			out[i] = recordObject(i, r, loc)
		}
		return writeJSON(w, out)

	case config.FormatCSV:
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"index", "time", "temperature_c", "pressure_hpa", "humidity_pct"})
		for i, r := range records {
			_ = cw.Write([]string{
				strconv.Itoa(i),
				r.Time(loc).Format(time.RFC3339),
				formatValue(r.Temperature),
				formatValue(r.Pressure),
				formatValue(r.Humidity),
			})
		}
		cw.Flush()
		return cw.Error()

	default:
		if len(records) == 0 {
			_, err := fmt.Fprintln(w, "No records stored on the station")
			return err
		}
		fmt.Fprintf(w, "%4s  %-19s  %10s  %14s  %12s\n", "#", "TIME", "TEMP (°C)", "PRESSURE (hPa)", "HUMIDITY (%)")
		fmt.Fprintln(w, strings.Repeat("-", 67))
		for i, r := range records {
			fmt.Fprintf(w, "%4d  %-19s  %s  %s  %s\n",
				i,
				r.Time(loc).Format(recordTimeLayout),
				cell(formatValue(r.Temperature), 10, r.TemperatureInRange()),
				cell(formatValue(r.Pressure), 14, r.PressureInRange()),
				cell(formatValue(r.Humidity), 12, r.HumidityInRange()))
		}
		last := records[len(records)-1]
		_, err := fmt.Fprintf(w, "\n%d record(s), latest #%d at %s\n", len(records), len(records)-1, last.Time(loc).Format(recordTimeLayout))
		return err
	}
}

func writeCount(w io.Writer, format string, count uint32) error {
	switch format {
	case config.FormatJSON:
		m := orderedmap.New[string, interface{}]()
		m.Set("count", count)
		return writeJSON(w, m)
	case config.FormatCSV:
		_, err := fmt.Fprintf(w, "count\n%d\n", count)
		return err
	default:
		_, err := fmt.Fprintf(w, "Stored records: %d\n", count)
		return err
	}
}

func writeDevices(w io.Writer, format string, devices []device.DeviceInfo) error {
	switch format {
	case config.FormatJSON:
		if devices == nil {
			devices = []device.DeviceInfo{}
		}
		return writeJSON(w, devices)

	case config.FormatCSV:
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"name", "address", "rssi", "connectable", "services"})
		for _, d := range devices {
			_ = cw.Write([]string{d.Name, d.Address, strconv.Itoa(d.RSSI), strconv.FormatBool(d.Connectable), strings.Join(d.Services, " ")})
		}
		cw.Flush()
		return cw.Error()

	default:
		if len(devices) == 0 {
			_, err := fmt.Fprintln(w, "No devices discovered")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tADDRESS\tRSSI\tSERVICES")
		for _, d := range devices {
			name := d.DisplayName()
			if len(name) > 24 {
				name = name[:21] + "..."
			}
			services := make([]string, len(d.Services))
			for i, s := range d.Services {
				services[i] = device.DisplayUUID(s)
			}
			fmt.Fprintf(tw, "%s\t%s\t%d dBm\t%s\n", name, d.Address, d.RSSI, strings.Join(services, ","))
		}
		return tw.Flush()
	}
}
