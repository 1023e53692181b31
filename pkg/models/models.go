package models

import (
	"encoding/json"
	"sort"
)

// Winner identifies which combatant won a fight.
const (
	WinnerA = "A"
	WinnerB = "B"
)

type Combatant struct {
	Species string `json:"species"`
	Count   int    `json:"count"`
}

// FightRecord is one generated fight scenario as it is persisted.
type FightRecord struct {
	ID         int       `json:"fight_id"`
	CombatantA Combatant `json:"combatant_a"`
	CombatantB Combatant `json:"combatant_b"`
	Winner     string    `json:"winner"`
	Commentary string    `json:"commentary"`
	Fact       string    `json:"fact"`
}

// WinnerSpecies returns the species of the winning side, or "" if Winner is invalid.
func (r FightRecord) WinnerSpecies() string {
	switch r.Winner {
	case WinnerA:
		return r.CombatantA.Species
	case WinnerB:
		return r.CombatantB.Species
	default:
		return ""
	}
}

// UsageIndex counts how often each species has appeared as either combatant.
type UsageIndex map[string]int

// Top returns the n most used species, most used first. Ties are broken by name.
func (u UsageIndex) Top(n int) []SpeciesCount {
	out := make([]SpeciesCount, 0, len(u))
	for species, count := range u {
		out = append(out, SpeciesCount{Species: species, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Species < out[j].Species
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Total returns the sum of all usage counts.
func (u UsageIndex) Total() int {
	total := 0
	for _, c := range u {
		total += c
	}
	return total
}

// SpeciesCount pairs a species with its usage count.
type SpeciesCount struct {
	Species string
	Count   int
}

// FactIndex holds, per species, the facts already used when that species won.
type FactIndex map[string]map[string]struct{}

// Add records a fact for species and reports whether it was new.
func (f FactIndex) Add(species, fact string) bool {
	set, ok := f[species]
	if !ok {
		set = make(map[string]struct{})
		f[species] = set
	}
	if _, seen := set[fact]; seen {
		return false
	}
	set[fact] = struct{}{}
	return true
}

// Has reports whether fact was already used for species.
func (f FactIndex) Has(species, fact string) bool {
	_, ok := f[species][fact]
	return ok
}

// Count returns the total number of facts across all species.
func (f FactIndex) Count() int {
	total := 0
	for _, set := range f {
		total += len(set)
	}
	return total
}

// Sorted returns the facts used for species in lexical order.
func (f FactIndex) Sorted(species string) []string {
	set := f[species]
	facts := make([]string, 0, len(set))
	for fact := range set {
		facts = append(facts, fact)
	}
	sort.Strings(facts)
	return facts
}

// MarshalJSON writes each species' facts as a sorted array.
func (f FactIndex) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(f))
	for species := range f {
		out[species] = f.Sorted(species)
	}
	return json.Marshal(out)
}

func (f *FactIndex) UnmarshalJSON(data []byte) error {
	var in map[string][]string
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	idx := make(FactIndex, len(in))
	for species, facts := range in {
		for _, fact := range facts {
			idx.Add(species, fact)
		}
	}
	*f = idx
	return nil
}

// State is the bookkeeping carried between batches and across runs.
type State struct {
	LastID int
	Usage  UsageIndex
	Facts  FactIndex
}

// NewState returns an empty state with initialised indexes.
func NewState() State {
	return State{Usage: make(UsageIndex), Facts: make(FactIndex)}
}

// Apply folds an accepted record into the indexes and advances LastID.
// It reports whether the record's fact was new for the winning species.
func (s *State) Apply(r FightRecord) bool {
	if s.Usage == nil {
		s.Usage = make(UsageIndex)
	}
	if s.Facts == nil {
		s.Facts = make(FactIndex)
	}
	s.Usage[r.CombatantA.Species]++
	s.Usage[r.CombatantB.Species]++
	if r.ID > s.LastID {
		s.LastID = r.ID
	}
	return s.Facts.Add(r.WinnerSpecies(), r.Fact)
}

// Clone returns a deep copy so a batch can be staged without touching s.
func (s State) Clone() State {
	c := State{
		LastID: s.LastID,
		Usage:  make(UsageIndex, len(s.Usage)),
		Facts:  make(FactIndex, len(s.Facts)),
	}
	for k, v := range s.Usage {
		c.Usage[k] = v
	}
	for species, set := range s.Facts {
		cp := make(map[string]struct{}, len(set))
		for fact := range set {
			cp[fact] = struct{}{}
		}
		c.Facts[species] = cp
	}
	return c
}

// CSVHeader is the fixed column order of the tabular history.
var CSVHeader = []string{
	"fight_id",
	"combatant_a_species",
	"combatant_a_count",
	"combatant_b_species",
	"combatant_b_count",
	"winner",
	"commentary",
	"fact",
}
