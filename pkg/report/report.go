// Package report summarises the generation state after a run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"fightgen/internal/atomicfile"
	"fightgen/pkg/models"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SpeciesUsage is a species and how many fights it appeared in. It encodes
// as a two element JSON array.
type SpeciesUsage struct {
	Species string
	Count   int
}

func (s SpeciesUsage) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{s.Species, s.Count})
}

func (s *SpeciesUsage) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("species usage must have 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &s.Species); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &s.Count)
}

// Report is the run summary written to generation_report.json
type Report struct {
	TotalFights         int           `json:"total_fights_generated"`
	FightsThisRun       int           `json:"fights_generated_this_run"`
	TotalTimeSeconds    float64       `json:"total_time_seconds"`
	UniqueSpecies       int           `json:"unique_species_used"`
	AverageSpeciesUsage float64       `json:"average_species_usage"`
	MostUsedSpecies     *SpeciesUsage `json:"most_used_species"`
	FactsGenerated      int           `json:"facts_generated"`
}

// Build derives the report from the final state. accepted is the number of
// records this run added and elapsed its wall time.
func Build(state models.State, accepted int, elapsed time.Duration) Report {
	r := Report{
		TotalFights:      state.LastID,
		FightsThisRun:    accepted,
		TotalTimeSeconds: elapsed.Seconds(),
		UniqueSpecies:    len(state.Usage),
		FactsGenerated:   state.Facts.Count(),
	}

	if r.UniqueSpecies > 0 {
		r.AverageSpeciesUsage = float64(state.Usage.Total()) / float64(r.UniqueSpecies)

		top := state.Usage.Top(1)[0]
		r.MostUsedSpecies = &SpeciesUsage{Species: top.Species, Count: top.Count}
	}

	return r
}

// Elapsed returns the run time as a duration
func (r Report) Elapsed() time.Duration {
	return time.Duration(r.TotalTimeSeconds * float64(time.Second))
}

// WriteJSON replaces path with the indented report
func (r Report) WriteJSON(path string) error {
	if err := atomicfile.WriteJSON(path, r); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Render writes the report as a table
func (r Report) Render(w io.Writer) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Format.Footer = text.FormatDefault
	tbl.SetTitle("Generation Report")
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})

	mostUsed := "-"
	if r.MostUsedSpecies != nil {
		mostUsed = fmt.Sprintf("%s (%s)", r.MostUsedSpecies.Species, humanize.Comma(int64(r.MostUsedSpecies.Count)))
	}

	tbl.AppendRows([]table.Row{
		{"Total fights", humanize.Comma(int64(r.TotalFights))},
		{"Fights this run", humanize.Comma(int64(r.FightsThisRun))},
		{"Run time", formatElapsed(r.Elapsed())},
		{"Unique species", humanize.Comma(int64(r.UniqueSpecies))},
		{"Average appearances", humanize.FormatFloat("#,###.##", r.AverageSpeciesUsage)},
		{"Most used species", mostUsed},
		{"Facts collected", humanize.Comma(int64(r.FactsGenerated))},
	})
	tbl.AppendFooter(table.Row{"Throughput", throughput(r)})

	tbl.Render()
	return nil
}

// Load reads a report written by WriteJSON
func Load(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("failed to parse report: %w", err)
	}
	return r, nil
}

func throughput(r Report) string {
	if r.TotalTimeSeconds <= 0 || r.FightsThisRun == 0 {
		return "-"
	}
	perMinute := float64(r.FightsThisRun) / r.TotalTimeSeconds * 60
	return humanize.FormatFloat("#,###.#", perMinute) + " fights/min"
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return "under a second"
	}
	now := time.Now()
	return strings.TrimSpace(humanize.RelTime(now, now.Add(d), "", ""))
}
