package bot

import (
	"math"
	"time"

	"github.com/mcoot/typerace-go/internal/dependencies/random"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/progress"
)

// Strategy decides how far a bot has typed at a point in the round.
// Returned counts never decrease between calls and correct never exceeds target.
type Strategy interface {
	Next(elapsed time.Duration, target int) (typed, correct int)
}

// Strategy names accepted when adding a bot
const (
	StrategySteady  = "steady"
	StrategyErratic = "erratic"
)

// Pace is the speed and accuracy a bot aims for
type Pace struct {
	WPM      float64
	Accuracy float64
}

// Validate checks the pace is achievable
func (p Pace) Validate() error {
	switch {
	case p.WPM <= 0 || p.WPM > MaxWPM:
		return model.Invalidf("bot wpm must be between 1 and %d, got %g", MaxWPM, p.WPM)
	case p.Accuracy <= 0 || p.Accuracy > 1:
		return model.Invalidf("bot accuracy must be in (0, 1], got %g", p.Accuracy)
	}
	return nil
}

// charsIn is the number of correct characters typed at the pace over d
func (p Pace) charsIn(d time.Duration) float64 {
	return p.WPM * progress.CharsPerWord * d.Seconds() / 60
}

// typedFor returns how many keystrokes produce correct characters at the pace's accuracy
func (p Pace) typedFor(correct int) int {
	return int(math.Round(float64(correct) / p.Accuracy))
}

// SteadyStrategy types at exactly its pace
type SteadyStrategy struct {
	pace Pace
}

// NewSteadyStrategy creates a SteadyStrategy
func NewSteadyStrategy(pace Pace) *SteadyStrategy {
	return &SteadyStrategy{pace: pace}
}

func (s *SteadyStrategy) Next(elapsed time.Duration, target int) (int, int) {
	correct := min(target, int(s.pace.charsIn(elapsed)))
	return s.pace.typedFor(correct), correct
}

// ErraticStrategy varies its speed between half and one and a half times its
// pace on every step
type ErraticStrategy struct {
	pace   Pace
	random random.Random

	last    time.Duration
	correct float64
	typed   int
}

// NewErraticStrategy creates an ErraticStrategy
func NewErraticStrategy(pace Pace, rnd random.Random) *ErraticStrategy {
	return &ErraticStrategy{pace: pace, random: rnd}
}

func (s *ErraticStrategy) Next(elapsed time.Duration, target int) (int, int) {
	if elapsed > s.last {
		factor := 0.5 + float64(s.random.Intn(101))/100
		s.correct += s.pace.charsIn(elapsed-s.last) * factor
		s.last = elapsed
	}
	correct := min(target, int(s.correct))
	s.typed = max(s.typed, s.pace.typedFor(correct))
	return s.typed, correct
}
