package prompt

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/typerace-go/internal/dependencies/mocks"
	"github.com/mcoot/typerace-go/internal/dependencies/random"
	"github.com/mcoot/typerace-go/internal/model"
)

type SelectorSuite struct {
	suite.Suite
}

func TestSelectorSuite(t *testing.T) {
	suite.Run(t, new(SelectorSuite))
}

// makePool builds a pool with counts[i] prompts for tier i
func makePool(counts ...int) []model.Prompt {
	var pool []model.Prompt
	for i, n := range counts {
		tier := model.Tier(i)
		for j := 0; j < n; j++ {
			pool = append(pool, model.Prompt{
				ID:     fmt.Sprintf("%s-%d", tier, j),
				Tier:   tier,
				Text:   fmt.Sprintf("%s prompt %d", tier, j),
				Active: true,
			})
		}
	}
	return pool
}

func countByTier(prompts []model.Prompt) map[model.Tier]int {
	counts := make(map[model.Tier]int)
	for _, p := range prompts {
		counts[p.Tier]++
	}
	return counts
}

func (s *SelectorSuite) assertDistinct(prompts []model.Prompt) {
	seen := make(map[string]bool)
	for _, p := range prompts {
		s.False(seen[p.ID], "duplicate prompt %s", p.ID)
		seen[p.ID] = true
	}
}

func (s *SelectorSuite) TestEightFromBalancedPool() {
	selector := NewSelector(random.NewSeeded(1))

	selected, err := selector.Select(makePool(8, 8, 8, 8), 8)

	s.Require().NoError(err)
	s.Len(selected, 8)
	s.assertDistinct(selected)
	for _, tier := range model.Tiers() {
		s.Equal(2, countByTier(selected)[tier], "tier %s", tier)
	}
}

func (s *SelectorSuite) TestExactCountForMultiplesOfFour() {
	for seed := uint64(0); seed < 25; seed++ {
		selector := NewSelector(random.NewSeeded(seed))
		for _, total := range []int{4, 8, 12, 20} {
			selected, err := selector.Select(makePool(5, 6, 7, 5), total)
			s.Require().NoError(err)
			s.Len(selected, total)
			s.assertDistinct(selected)
			for _, tier := range model.Tiers() {
				s.Equal(total/4, countByTier(selected)[tier])
			}
		}
	}
}

func (s *SelectorSuite) TestInsufficientTierFails() {
	selector := NewSelector(random.NewSeeded(1))

	selected, err := selector.Select(makePool(8, 8, 1, 8), 8)

	s.Nil(selected)
	s.ErrorIs(err, model.ErrInsufficientPrompts)
	var insufficient *model.InsufficientPromptsError
	s.Require().ErrorAs(err, &insufficient)
	s.Equal(model.TierHard, insufficient.Tier)
	s.Equal(1, insufficient.Available)
	s.Equal(2, insufficient.Required)
}

func (s *SelectorSuite) TestEmptyPoolFails() {
	_, err := NewSelector(random.NewSeeded(1)).Select(nil, 4)
	s.ErrorIs(err, model.ErrInsufficientPrompts)
}

func (s *SelectorSuite) TestNonPositiveTotalIsInvalid() {
	_, err := NewSelector(random.NewSeeded(1)).Select(makePool(1, 1, 1, 1), 0)
	s.ErrorIs(err, model.ErrValidation)
}

func (s *SelectorSuite) TestRemainderGoesToEasierTiersFirst() {
	selector := NewSelector(random.NewSeeded(3))

	selected, err := selector.Select(makePool(3, 3, 3, 3), 6)

	s.Require().NoError(err)
	s.Len(selected, 6)
	counts := countByTier(selected)
	s.Equal(2, counts[model.TierEasy])
	s.Equal(2, counts[model.TierMedium])
	s.Equal(1, counts[model.TierHard])
	s.Equal(1, counts[model.TierInsane])
}

func (s *SelectorSuite) TestRemainderNeedsExtraPrompt() {
	// total 5 wants two easy prompts
	_, err := NewSelector(random.NewSeeded(3)).Select(makePool(1, 2, 2, 2), 5)

	var insufficient *model.InsufficientPromptsError
	s.Require().ErrorAs(err, &insufficient)
	s.Equal(model.TierEasy, insufficient.Tier)
}

func (s *SelectorSuite) TestQuotas() {
	s.Equal(map[model.Tier]int{model.TierEasy: 1, model.TierMedium: 1, model.TierHard: 1, model.TierInsane: 0}, Quotas(3))
	s.Equal(map[model.Tier]int{model.TierEasy: 3, model.TierMedium: 2, model.TierHard: 2, model.TierInsane: 2}, Quotas(9))
	s.Empty(Quotas(0))
}

func (s *SelectorSuite) TestDrawIsDeterminedByRandomSource() {
	rnd := mocks.NewMockRandom()
	// Pick index 2 then 0 from each four-prompt bucket
	rnd.QueueIntn(2, 0, 2, 0, 2, 0, 2, 0)

	selected, err := NewSelector(rnd).Select(makePool(4, 4, 4, 4), 8)

	s.Require().NoError(err)
	ids := make(map[string]bool)
	for _, p := range selected {
		ids[p.ID] = true
	}
	// Index 2 is swapped to the front, then offset 0 keeps slot 1 in place
	for _, tier := range model.Tiers() {
		s.True(ids[fmt.Sprintf("%s-2", tier)])
		s.True(ids[fmt.Sprintf("%s-1", tier)])
	}
}

func (s *SelectorSuite) TestSameSeedSameSelection() {
	pool := makePool(6, 6, 6, 6)

	a, err := NewSelector(random.NewSeeded(99)).Select(pool, 8)
	s.Require().NoError(err)
	b, err := NewSelector(random.NewSeeded(99)).Select(pool, 8)
	s.Require().NoError(err)

	s.Equal(a, b)
}

func (s *SelectorSuite) TestPoolIsNotModified() {
	pool := makePool(4, 4, 4, 4)
	before := append([]model.Prompt(nil), pool...)

	_, err := NewSelector(random.NewSeeded(5)).Select(pool, 8)

	s.Require().NoError(err)
	s.Equal(before, pool)
}
