package bot_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/typerace-go/internal/dependencies/mocks"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/bot"
)

type StrategySuite struct {
	suite.Suite
	mockRandom *mocks.MockRandom
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategySuite))
}

func (s *StrategySuite) SetupTest() {
	s.mockRandom = mocks.NewMockRandom()
}

func (s *StrategySuite) TestSteadyFollowsPace() {
	// 60 WPM is 300 correct characters a minute
	strategy := bot.NewSteadyStrategy(bot.Pace{WPM: 60, Accuracy: 0.8})

	typed, correct := strategy.Next(6*time.Second, 1000)
	s.Equal(30, correct)
	s.Equal(38, typed)

	typed, correct = strategy.Next(time.Minute, 100)
	s.Equal(100, correct, "correct is capped at the target")
	s.Equal(125, typed)
}

func (s *StrategySuite) TestSteadyAtStart() {
	strategy := bot.NewSteadyStrategy(bot.Pace{WPM: 60, Accuracy: 1})
	typed, correct := strategy.Next(0, 100)
	s.Zero(typed)
	s.Zero(correct)
}

func (s *StrategySuite) TestErraticVariesButNeverGoesBack() {
	strategy := bot.NewErraticStrategy(bot.Pace{WPM: 60, Accuracy: 1}, s.mockRandom)

	// factor 0.5, then 1.5, then 1.0
	s.mockRandom.QueueIntn(0, 100, 50)

	typed, correct := strategy.Next(time.Second, 1000)
	s.Equal(2, correct)
	s.Equal(2, typed)

	typed, correct = strategy.Next(2*time.Second, 1000)
	s.Equal(10, correct)
	s.Equal(10, typed)

	typed, correct = strategy.Next(3*time.Second, 1000)
	s.Equal(15, correct)
	s.Equal(15, typed)

	// Same instant adds nothing
	typed, correct = strategy.Next(3*time.Second, 1000)
	s.Equal(15, correct)
	s.Equal(15, typed)
}

func (s *StrategySuite) TestErraticCapsAtTarget() {
	strategy := bot.NewErraticStrategy(bot.Pace{WPM: 120, Accuracy: 0.5}, s.mockRandom)
	s.mockRandom.QueueIntn(100)

	typed, correct := strategy.Next(time.Minute, 50)
	s.Equal(50, correct)
	s.Equal(100, typed)
}

func (s *StrategySuite) TestPaceValidate() {
	s.NoError(bot.Pace{WPM: 80, Accuracy: 0.95}.Validate())
	s.ErrorIs(bot.Pace{WPM: 0, Accuracy: 1}.Validate(), model.ErrValidation)
	s.ErrorIs(bot.Pace{WPM: bot.MaxWPM + 1, Accuracy: 1}.Validate(), model.ErrValidation)
	s.ErrorIs(bot.Pace{WPM: 60, Accuracy: 1.2}.Validate(), model.ErrValidation)
	s.ErrorIs(bot.Pace{WPM: 60, Accuracy: 0}.Validate(), model.ErrValidation)
}
