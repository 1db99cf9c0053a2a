package prompt

import (
	"github.com/mcoot/typerace-go/internal/dependencies/random"
	"github.com/mcoot/typerace-go/internal/model"
)

// Selector draws a difficulty-balanced set of prompts for a race
type Selector struct {
	random random.Random
}

// NewSelector creates a Selector using rnd for sampling
func NewSelector(rnd random.Random) *Selector {
	return &Selector{random: rnd}
}

// Quotas splits total across the tiers. Each tier gets total/4 and the
// remainder is handed out one each starting from the easiest tier.
func Quotas(total int) map[model.Tier]int {
	quotas := make(map[model.Tier]int, model.TierCount)
	if total <= 0 {
		return quotas
	}
	perTier := total / model.TierCount
	remainder := total % model.TierCount
	for i, tier := range model.Tiers() {
		quotas[tier] = perTier
		if i < remainder {
			quotas[tier]++
		}
	}
	return quotas
}

// Select returns total prompts drawn uniformly without replacement from pool,
// balanced across tiers per Quotas. The result is grouped by tier, but
// callers should not depend on its order. pool is not modified.
func (s *Selector) Select(pool []model.Prompt, total int) ([]model.Prompt, error) {
	if total <= 0 {
		return nil, model.Invalidf("prompt count must be positive, got %d", total)
	}

	buckets := make(map[model.Tier][]model.Prompt, model.TierCount)
	for _, p := range pool {
		if !p.Tier.Valid() {
			continue
		}
		buckets[p.Tier] = append(buckets[p.Tier], p)
	}

	quotas := Quotas(total)
	for _, tier := range model.Tiers() {
		if len(buckets[tier]) < quotas[tier] {
			return nil, &model.InsufficientPromptsError{
				Tier:      tier,
				Available: len(buckets[tier]),
				Required:  quotas[tier],
			}
		}
	}

	selected := make([]model.Prompt, 0, total)
	for _, tier := range model.Tiers() {
		selected = append(selected, s.sample(buckets[tier], quotas[tier])...)
	}
	return selected, nil
}

// sample shuffles the first n slots of bucket in place (partial Fisher-Yates)
func (s *Selector) sample(bucket []model.Prompt, n int) []model.Prompt {
	for i := 0; i < n; i++ {
		j := i + s.random.Intn(len(bucket)-i)
		bucket[i], bucket[j] = bucket[j], bucket[i]
	}
	return bucket[:n]
}
