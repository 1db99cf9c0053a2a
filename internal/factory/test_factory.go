package factory

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/typerace-go/internal/dependencies/mocks"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/storage/memory"
	"github.com/mcoot/typerace-go/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	FakeClock  *clockwork.FakeClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	fakeClock := mocks.NewFakeClock()
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(store, fakeClock, mockRandom, DefaultServices(), testutil.NopLogger())

	return &TestApp{
		App:        app,
		FakeClock:  fakeClock,
		MockRandom: mockRandom,
	}
}

// TestPromptText is the text of every prompt loaded by LoadTestPrompts
const TestPromptText = "the quick brown fox"

// LoadTestPrompts stores perTier active prompts in every tier. Every prompt
// has the same text so a race's target length is predictable.
func (t *TestApp) LoadTestPrompts(perTier int) error {
	var prompts []model.Prompt
	for _, tier := range model.Tiers() {
		for i := range perTier {
			prompts = append(prompts, model.Prompt{
				ID:       fmt.Sprintf("%s-%02d", tier, i),
				Tier:     tier,
				Text:     TestPromptText,
				Language: "en",
				Active:   true,
			})
		}
	}
	return t.Storage.SavePrompts(context.Background(), prompts)
}
