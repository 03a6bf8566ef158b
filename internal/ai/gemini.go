// Package ai narrates household reports with a Gemini model.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-1.5-flash"

var (
	ErrNoAPIKey   = errors.New("gemini API key not configured")
	ErrNoResponse = errors.New("no text in Gemini response")
)

// Config tunes generation. Zero values take the defaults used by New.
type Config struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopK            int32
	TopP            float32
	MaxOutputTokens int32
}

// Gemini is a lazily connected narrator. It is safe for concurrent use.
type Gemini struct {
	cfg Config

	mu     sync.Mutex
	client *genai.Client
	model  *genai.GenerativeModel
}

// New validates cfg and fills defaults. No connection is made until the
// first Narrate call.
func New(cfg Config) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.TopK == 0 {
		cfg.TopK = 40
	}
	if cfg.TopP == 0 {
		cfg.TopP = 0.95
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = 1024
	}
	return &Gemini{cfg: cfg}, nil
}

func (g *Gemini) ensureModel(ctx context.Context) (*genai.GenerativeModel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.model != nil {
		return g.model, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	m := client.GenerativeModel(g.cfg.Model)
	m.SetTemperature(g.cfg.Temperature)
	m.SetTopK(g.cfg.TopK)
	m.SetTopP(g.cfg.TopP)
	m.SetMaxOutputTokens(g.cfg.MaxOutputTokens)
	g.client, g.model = client, m
	return m, nil
}

// Narrate sends prompt and returns the trimmed text of the first candidate.
func (g *Gemini) Narrate(ctx context.Context, prompt string) (string, error) {
	m, err := g.ensureModel(ctx)
	if err != nil {
		return "", err
	}
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return ResponseText(resp)
}

// ResponseText joins the text parts of the first candidate.
func ResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoResponse
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrNoResponse
	}
	return stripFence(text), nil
}

// stripFence removes a surrounding ```html fence some models add.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// Close releases the client, if one was created.
func (g *Gemini) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client, g.model = nil, nil
	return err
}
