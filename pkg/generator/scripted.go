package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"fightgen/pkg/models"
)

// ErrScriptExhausted is returned when a Scripted client runs out of steps
// and has no fallback.
var ErrScriptExhausted = errors.New("scripted generator has no more responses")

// Step is one canned response
type Step struct {
	Payload string
	Err     error
}

// Scripted replays canned responses in order. It backs dry runs and tests.
type Scripted struct {
	mu       sync.Mutex
	steps    []Step
	requests []Request

	// Fallback answers once steps are used up
	Fallback func(Request) (string, error)
}

// NewScripted creates a client that returns steps in order
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// NewSynthetic creates a client that always answers with well-formed
// sample fights.
func NewSynthetic() *Scripted {
	s := &Scripted{}
	s.Fallback = func(req Request) (string, error) {
		s.mu.Lock()
		seq := len(s.requests)
		s.mu.Unlock()
		return SampleBatch(req.Count, seq*req.Count), nil
	}
	return s
}

func (s *Scripted) Model() string {
	return "scripted"
}

func (s *Scripted) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	if len(s.steps) == 0 {
		fallback := s.Fallback
		s.mu.Unlock()
		if fallback == nil {
			return "", ErrScriptExhausted
		}
		return fallback(req)
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	s.mu.Unlock()

	return step.Payload, step.Err
}

// Requests returns every request received so far
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Encode renders records as a generator payload
func Encode(records ...models.FightRecord) string {
	data, err := json.Marshal(records)
	if err != nil {
		return ""
	}
	return string(data)
}

var sampleRoster = []struct {
	species string
	count   int
	fact    string
}{
	{"honey badger", 1, "Honey badgers are partially resistant to snake venom."},
	{"king cobra", 1, "King cobras are the longest venomous snakes."},
	{"gorilla", 1, "Gorillas can lift up to ten times their body weight."},
	{"army ant", 2000, "Army ants build living bridges out of their own bodies."},
	{"bald eagle", 2, "Bald eagles build the largest nests of any North American bird."},
	{"wolverine", 1, "Wolverines can scare bears away from a kill."},
	{"mantis shrimp", 3, "Mantis shrimp punch with the speed of a bullet."},
	{"octopus", 1, "Octopuses have three hearts."},
	{"kangaroo", 2, "Kangaroos cannot walk backwards."},
	{"emu", 4, "Emus can sprint at nearly fifty kilometres per hour."},
}

// SampleBatch builds n valid fights. offset varies the pairings and facts
// so consecutive batches differ.
func SampleBatch(n, offset int) string {
	records := make([]models.FightRecord, 0, n)
	size := len(sampleRoster)
	for i := 0; i < n; i++ {
		k := offset + i
		a := sampleRoster[k%size]
		b := sampleRoster[(k+1+(k/size)%(size-1))%size]
		winner, fact := models.WinnerA, a.fact
		if k%2 == 1 {
			winner, fact = models.WinnerB, b.fact
		}
		records = append(records, models.FightRecord{
			ID:         i + 1,
			CombatantA: models.Combatant{Species: a.species, Count: a.count},
			CombatantB: models.Combatant{Species: b.species, Count: b.count},
			Winner:     winner,
			Commentary: fmt.Sprintf("Round %d went the distance before the %s took it.", k+1, map[string]string{models.WinnerA: a.species, models.WinnerB: b.species}[winner]),
			Fact:       fmt.Sprintf("%s (#%d)", fact, k+1),
		})
	}
	return Encode(records...)
}
