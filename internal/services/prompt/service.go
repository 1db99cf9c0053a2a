package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mcoot/typerace-go/internal/dependencies/random"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/storage"
)

// DefaultLanguage is applied to prompts that do not declare one
const DefaultLanguage = "en"

// Service is the prompt catalog: it reads the pool from storage and
// draws balanced race texts from it
type Service struct {
	storage  storage.Storage
	selector *Selector
	logger   *slog.Logger
}

// New creates a new prompt Service
func New(storage storage.Storage, rnd random.Random, logger *slog.Logger) *Service {
	return &Service{
		storage:  storage,
		selector: NewSelector(rnd),
		logger:   logger.With(slog.String("component", "prompt-service")),
	}
}

// Draw loads the active pool and selects total prompts from it
func (s *Service) Draw(ctx context.Context, total int) ([]model.Prompt, error) {
	pool, err := s.storage.LoadPromptPool(ctx, true)
	if err != nil {
		return nil, err
	}
	selected, err := s.selector.Select(pool, total)
	if err != nil {
		s.logger.Warn("prompt draw failed",
			slog.Int("pool_size", len(pool)),
			slog.Int("requested", total),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return selected, nil
}

// Pool returns every stored prompt, including inactive ones
func (s *Service) Pool(ctx context.Context) ([]model.Prompt, error) {
	return s.storage.LoadPromptPool(ctx, false)
}

// LoadFromFile imports prompts from a YAML file into storage
func (s *Service) LoadFromFile(ctx context.Context, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	n, err := s.Import(ctx, file)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", path, err)
	}
	s.logger.Info("prompts loaded", slog.String("path", path), slog.Int("count", n))
	return n, nil
}

// Import parses a YAML prompt document and saves it to storage
func (s *Service) Import(ctx context.Context, r io.Reader) (int, error) {
	prompts, err := Parse(r)
	if err != nil {
		return 0, err
	}
	if err := s.storage.SavePrompts(ctx, prompts); err != nil {
		return 0, err
	}
	return len(prompts), nil
}

type promptFile struct {
	Prompts []promptEntry `yaml:"prompts"`
}

type promptEntry struct {
	ID       string `yaml:"id"`
	Tier     string `yaml:"tier"`
	Text     string `yaml:"text"`
	Language string `yaml:"language"`
	Active   *bool  `yaml:"active"`
}

// Parse decodes a YAML prompt document. Prompts are active unless
// marked otherwise; IDs must be unique and texts non-empty.
func Parse(r io.Reader) ([]model.Prompt, error) {
	var doc promptFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, model.Invalidf("prompt file is empty")
		}
		return nil, model.Invalidf("decode prompt file: %v", err)
	}

	seen := make(map[string]struct{}, len(doc.Prompts))
	prompts := make([]model.Prompt, 0, len(doc.Prompts))
	for i, e := range doc.Prompts {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, model.Invalidf("prompt %d has no id", i)
		}
		if _, dup := seen[id]; dup {
			return nil, model.Invalidf("duplicate prompt id %q", id)
		}
		seen[id] = struct{}{}

		text := strings.Join(strings.Fields(e.Text), " ")
		if text == "" {
			return nil, model.Invalidf("prompt %q has no text", id)
		}

		tier, err := model.ParseTier(e.Tier)
		if err != nil {
			return nil, fmt.Errorf("prompt %q: %w", id, err)
		}

		p := model.Prompt{
			ID:       id,
			Tier:     tier,
			Text:     text,
			Language: e.Language,
			Active:   e.Active == nil || *e.Active,
		}
		if p.Language == "" {
			p.Language = DefaultLanguage
		}
		prompts = append(prompts, p)
	}
	return prompts, nil
}
