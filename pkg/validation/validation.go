// Package validation turns raw generator output into fight records.
//
// A batch is accepted or discarded as a whole: one malformed element rejects
// every record in the payload.
package validation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	errs "fightgen/pkg/errors"
	"fightgen/pkg/models"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed fight_batch.schema.json
var batchSchema string

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(batchSchema))
	})
	return schema, schemaErr
}

// Issue describes one problem found in a batch
type Issue struct {
	Field       string
	Description string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Description)
}

// BatchError reports why a batch was discarded
type BatchError struct {
	Issues []Issue
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for i, issue := range e.Issues {
		if i == 5 {
			parts = append(parts, fmt.Sprintf("and %d more", len(e.Issues)-5))
			break
		}
		parts = append(parts, issue.String())
	}
	return "invalid batch: " + strings.Join(parts, "; ")
}

// StripFences removes a surrounding markdown code fence and any prose
// before the first '[' or after the last ']'.
func StripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// Decode parses and validates a generator payload. Ids in the payload are
// kept as given; the orchestrator reassigns them.
func Decode(raw string) ([]models.FightRecord, error) {
	text := StripFences(raw)
	if text == "" {
		return nil, errs.New(errs.ErrorTypeParsing, "empty payload")
	}
	if !json.Valid([]byte(text)) {
		return nil, errs.New(errs.ErrorTypeParsing, "payload is not valid JSON")
	}

	s, err := compiledSchema()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to compile batch schema", err)
	}

	result, err := s.Validate(gojsonschema.NewStringLoader(text))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "failed to validate payload", err)
	}
	if !result.Valid() {
		batchErr := &BatchError{}
		for _, re := range result.Errors() {
			batchErr.Issues = append(batchErr.Issues, Issue{Field: re.Field(), Description: re.Description()})
		}
		return nil, errs.Wrap(errs.ErrorTypeValidation, "batch rejected", batchErr)
	}

	var wire []wireRecord
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "failed to decode payload", err)
	}

	records, issues := fromWire(wire)
	if len(issues) == 0 {
		issues = Check(records)
	}
	if len(issues) > 0 {
		return nil, errs.Wrap(errs.ErrorTypeValidation, "batch rejected", &BatchError{Issues: issues})
	}

	for i := range records {
		normalize(&records[i])
	}
	return records, nil
}

// wireRecord is a FightRecord as models emit it. Numbers are kept as
// json.Number so whole floats such as 2.0 are accepted.
type wireRecord struct {
	ID         json.Number   `json:"fight_id"`
	CombatantA wireCombatant `json:"combatant_a"`
	CombatantB wireCombatant `json:"combatant_b"`
	Winner     string        `json:"winner"`
	Commentary string        `json:"commentary"`
	Fact       string        `json:"fact"`
}

type wireCombatant struct {
	Species string      `json:"species"`
	Count   json.Number `json:"count"`
}

func fromWire(wire []wireRecord) ([]models.FightRecord, []Issue) {
	records := make([]models.FightRecord, 0, len(wire))
	var issues []Issue
	for i, w := range wire {
		number := func(field string, n json.Number) int {
			v, ok := wholeNumber(n)
			if !ok {
				issues = append(issues, Issue{fmt.Sprintf("%d.%s", i, field), "must be a whole number"})
			}
			return v
		}
		records = append(records, models.FightRecord{
			ID:         number("fight_id", w.ID),
			CombatantA: models.Combatant{Species: w.CombatantA.Species, Count: number("combatant_a.count", w.CombatantA.Count)},
			CombatantB: models.Combatant{Species: w.CombatantB.Species, Count: number("combatant_b.count", w.CombatantB.Count)},
			Winner:     w.Winner,
			Commentary: w.Commentary,
			Fact:       w.Fact,
		})
	}
	return records, issues
}

func wholeNumber(n json.Number) (int, bool) {
	if v, err := n.Int64(); err == nil {
		return int(v), v >= math.MinInt32 && v <= math.MaxInt32
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// Check applies the rules the schema cannot express
func Check(records []models.FightRecord) []Issue {
	var issues []Issue
	for i, r := range records {
		at := func(field string) string { return fmt.Sprintf("%d.%s", i, field) }

		a := strings.TrimSpace(r.CombatantA.Species)
		b := strings.TrimSpace(r.CombatantB.Species)
		if a == "" {
			issues = append(issues, Issue{at("combatant_a.species"), "must not be blank"})
		}
		if b == "" {
			issues = append(issues, Issue{at("combatant_b.species"), "must not be blank"})
		}
		if a != "" && strings.EqualFold(a, b) {
			issues = append(issues, Issue{at("combatant_b.species"), "must differ from combatant_a.species"})
		}
		if r.CombatantA.Count < 1 {
			issues = append(issues, Issue{at("combatant_a.count"), "must be positive"})
		}
		if r.CombatantB.Count < 1 {
			issues = append(issues, Issue{at("combatant_b.count"), "must be positive"})
		}
		if r.Winner != models.WinnerA && r.Winner != models.WinnerB {
			issues = append(issues, Issue{at("winner"), `must be "A" or "B"`})
		}
		if strings.TrimSpace(r.Commentary) == "" {
			issues = append(issues, Issue{at("commentary"), "must not be blank"})
		}
		if strings.TrimSpace(r.Fact) == "" {
			issues = append(issues, Issue{at("fact"), "must not be blank"})
		}
	}
	return issues
}

func normalize(r *models.FightRecord) {
	r.CombatantA.Species = strings.TrimSpace(r.CombatantA.Species)
	r.CombatantB.Species = strings.TrimSpace(r.CombatantB.Species)
	r.Commentary = strings.TrimSpace(r.Commentary)
	r.Fact = strings.TrimSpace(r.Fact)
}
