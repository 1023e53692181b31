package report

import (
	"fmt"
	"io"

	"fightgen/internal/atomicfile"
	"fightgen/pkg/models"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	defaultTopSpecies = 20
	xAxisRotate       = 45
)

// UsageChart builds a bar chart of the topN most used species
func UsageChart(state models.State, topN int) *charts.Bar {
	if topN <= 0 {
		topN = defaultTopSpecies
	}
	top := state.Usage.Top(topN)

	subtitle := fmt.Sprintf("%d fights, %d species", state.LastID, len(state.Usage))
	if len(top) == 0 {
		subtitle = "No data"
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "fightgen species usage",
			Width:     "100%",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Most Used Species",
			Subtitle: subtitle,
		}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{
				Rotate:   xAxisRotate,
				Interval: "0",
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Appearances"}),
	)

	labels := make([]string, len(top))
	data := make([]opts.BarData, len(top))
	for i, sc := range top {
		labels[i] = sc.Species
		data[i] = opts.BarData{Value: sc.Count}
	}
	bar.SetXAxis(labels)
	bar.AddSeries("Appearances", data)

	return bar
}

// WriteChart renders the usage chart as a standalone HTML page at path
func WriteChart(path string, state models.State, topN int) error {
	bar := UsageChart(state, topN)
	if err := atomicfile.Write(path, func(w io.Writer) error {
		return bar.Render(w)
	}); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return nil
}
