package prompt

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/typerace-go/internal/dependencies/random"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/storage/memory"
	"github.com/mcoot/typerace-go/internal/testutil"
)

const sampleYAML = `
prompts:
  - id: e1
    tier: easy
    text: "The quick   brown fox."
  - id: m1
    tier: medium
    text: Pack my box with five dozen liquor jugs.
    language: en-GB
  - id: h1
    tier: hard
    text: Sphinx of black quartz, judge my vow.
  - id: i1
    tier: insane
    text: Jackdaws love my big sphinx of quartz!
  - id: i2
    tier: insane
    text: Retired prompt.
    active: false
`

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.service = New(s.storage, random.NewSeeded(1), testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ServiceSuite) TestImportSavesToStorage() {
	n, err := s.service.Import(s.ctx, strings.NewReader(sampleYAML))
	s.Require().NoError(err)
	s.Equal(5, n)

	pool, err := s.storage.LoadPromptPool(s.ctx, true)
	s.Require().NoError(err)
	s.Len(pool, 4)

	all, err := s.service.Pool(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 5)
}

func (s *ServiceSuite) TestParseNormalizesEntries() {
	prompts, err := Parse(strings.NewReader(sampleYAML))
	s.Require().NoError(err)

	s.Equal("The quick brown fox.", prompts[0].Text)
	s.Equal(DefaultLanguage, prompts[0].Language)
	s.True(prompts[0].Active)
	s.Equal("en-GB", prompts[1].Language)
	s.Equal(model.TierInsane, prompts[4].Tier)
	s.False(prompts[4].Active)
}

func (s *ServiceSuite) TestParseRejectsBadEntries() {
	cases := map[string]string{
		"unknown tier": "prompts:\n  - id: x\n    tier: brutal\n    text: hi\n",
		"missing id":   "prompts:\n  - tier: easy\n    text: hi\n",
		"duplicate id": "prompts:\n  - {id: x, tier: easy, text: a}\n  - {id: x, tier: hard, text: b}\n",
		"empty text":   "prompts:\n  - {id: x, tier: easy, text: '  '}\n",
		"empty file":   "",
	}
	for name, doc := range cases {
		_, err := Parse(strings.NewReader(doc))
		s.ErrorIs(err, model.ErrValidation, name)
	}
}

func (s *ServiceSuite) TestLoadFromFile() {
	path := filepath.Join(s.T().TempDir(), "prompts.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(sampleYAML), 0o600))

	n, err := s.service.LoadFromFile(s.ctx, path)
	s.Require().NoError(err)
	s.Equal(5, n)
}

func (s *ServiceSuite) TestLoadFromMissingFile() {
	_, err := s.service.LoadFromFile(s.ctx, filepath.Join(s.T().TempDir(), "nope.yaml"))
	s.Error(err)
}

func (s *ServiceSuite) TestDrawUsesActivePoolOnly() {
	_, err := s.service.Import(s.ctx, strings.NewReader(sampleYAML))
	s.Require().NoError(err)

	selected, err := s.service.Draw(s.ctx, 4)
	s.Require().NoError(err)
	s.Len(selected, 4)
	for _, p := range selected {
		s.NotEqual("i2", p.ID)
	}

	_, err = s.service.Draw(s.ctx, 8)
	s.ErrorIs(err, model.ErrInsufficientPrompts)
}
