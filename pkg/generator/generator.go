// Package generator talks to the text generation service that invents fight
// scenarios.
package generator

import (
	"context"
	"fmt"
	"strings"

	"fightgen/pkg/models"
)

// SystemPrompt frames every generation request.
const SystemPrompt = "You are a creative fight scenario generator that follows strict formatting rules."

const (
	// avoidListSize bounds how many overused species are named in the prompt.
	avoidListSize = 15
	// usedFactSpecies and usedFactsPerSpecies bound the used-fact hints.
	usedFactSpecies     = 5
	usedFactsPerSpecies = 3
)

// Request asks for Count new fights. Usage and Facts are the historical
// indexes, used to steer the generator away from repetition.
type Request struct {
	Count int
	Usage models.UsageIndex
	Facts models.FactIndex
}

// Client produces raw batch payloads. Parsing and validation happen elsewhere.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	Model() string
}

// BuildPrompt renders the user prompt for req
func BuildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d unique animal fight scenarios with the following format:\n", req.Count)
	b.WriteString(`- Each fight should be between animals of different species
- The number of animals on each side should be balanced based on their size and strength
- Include a brief, humorous explanation of why the winner won
- Include a unique fun fact about the winning species that hasn't been used before
- Make sure the fights are realistic and balanced
- Avoid repeating the same species combinations
- Ensure the commentary is unique and entertaining
`)

	if top := req.Usage.Top(avoidListSize); len(top) > 0 {
		names := make([]string, len(top))
		for i, sc := range top {
			names[i] = sc.Species
		}
		fmt.Fprintf(&b, "- These species are already overused, prefer others: %s\n", strings.Join(names, ", "))

		for _, sc := range top[:min(len(top), usedFactSpecies)] {
			facts := req.Facts.Sorted(sc.Species)
			if len(facts) == 0 {
				continue
			}
			if len(facts) > usedFactsPerSpecies {
				facts = facts[:usedFactsPerSpecies]
			}
			fmt.Fprintf(&b, "- Facts already used for %s: %s\n", sc.Species, strings.Join(facts, " | "))
		}
	}

	b.WriteString(`
Format each fight as a JSON object with these exact fields:
{
    "fight_id": number,
    "combatant_a": {"species": "species_name", "count": number},
    "combatant_b": {"species": "species_name", "count": number},
    "winner": "A" or "B",
    "commentary": "humorous explanation of the outcome",
    "fact": "unique fun fact about the winning species"
}

Return only a JSON array of these objects, nothing else.
`)
	return b.String()
}
