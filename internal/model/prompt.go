package model

import (
	"fmt"
	"strings"
)

// Tier is a prompt difficulty level. Tiers are ordered from easiest to hardest.
type Tier int

const (
	TierEasy Tier = iota
	TierMedium
	TierHard
	TierInsane
)

// TierCount is the number of difficulty tiers
const TierCount = 4

var tierNames = [TierCount]string{"easy", "medium", "hard", "insane"}

// Tiers returns every tier in difficulty order
func Tiers() []Tier {
	return []Tier{TierEasy, TierMedium, TierHard, TierInsane}
}

// Valid reports whether t is one of the known tiers
func (t Tier) Valid() bool {
	return t >= TierEasy && t <= TierInsane
}

func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// ParseTier converts a tier name to a Tier
func ParseTier(s string) (Tier, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range tierNames {
		if n == name {
			return Tier(i), nil
		}
	}
	return 0, Invalidf("unknown tier %q", s)
}

// MarshalText encodes the tier by name
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, Invalidf("unknown tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Prompt is a text that players race to type
type Prompt struct {
	ID       string `json:"id" yaml:"id"`
	Tier     Tier   `json:"tier" yaml:"tier"`
	Text     string `json:"text" yaml:"text"`
	Language string `json:"language" yaml:"language"`
	Active   bool   `json:"active" yaml:"active"`
}
