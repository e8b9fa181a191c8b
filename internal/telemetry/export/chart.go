// Package export renders telemetry series for clients: Chart.js JSON payloads and CSV downloads.
package export

import (
	"math"
	"time"

	"mqtt-monitor/backend/internal/telemetry/domain"
)

// LabelLayout is the time format of chart labels. A plain string keeps Chart.js from switching to a time scale.
const LabelLayout = "2006-01-02 15:04:05"

const (
	chartBorderColor     = "rgb(75, 192, 192)"
	chartBackgroundColor = "rgba(75, 192, 192, 0.2)"
	chartTension         = 0.1
)

// ChartPayload is the JSON body served to the chart page.
type ChartPayload struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// ChartDataset is one line of the chart. Data holds null for missing values.
type ChartDataset struct {
	Label           string     `json:"label"`
	Data            []*float64 `json:"data"`
	BorderColor     string     `json:"borderColor"`
	BackgroundColor string     `json:"backgroundColor"`
	Tension         float64    `json:"tension"`
}

// NewChartPayload builds the chart payload for s: one label and one data entry per point, in order.
// Labels are UTC. NaN and infinite values are sent as null since JSON cannot carry them.
func NewChartPayload(s *domain.Series) ChartPayload {
	labels := make([]string, len(s.Points))
	data := make([]*float64, len(s.Points))
	for i, p := range s.Points {
		labels[i] = FormatLabel(p.Time)
		if p.Value != nil && !math.IsNaN(*p.Value) && !math.IsInf(*p.Value, 0) {
			v := *p.Value
			data[i] = &v
		}
	}
	return ChartPayload{
		Labels: labels,
		Datasets: []ChartDataset{{
			Label:           DatasetLabel(s.Topic, s.Field),
			Data:            data,
			BorderColor:     chartBorderColor,
			BackgroundColor: chartBackgroundColor,
			Tension:         chartTension,
		}},
	}
}

// FormatLabel formats t in UTC with LabelLayout.
func FormatLabel(t time.Time) string {
	return t.UTC().Format(LabelLayout)
}

// DatasetLabel returns "<topic> (<field>)".
func DatasetLabel(topic, field string) string {
	return topic + " (" + field + ")"
}
