package assistant

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

var ErrUnavailable = errors.New("assistant is not configured")

type GenerateOptions struct {
	// Schema asks for a JSON response matching it. Nil means free text.
	Schema *genai.Schema
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey string, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	var cfg *genai.GenerateContentConfig
	if opts.Schema != nil {
		cfg = &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   opts.Schema,
		}
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Unavailable stands in when no API key is configured.
type Unavailable struct{}

func (Unavailable) Generate(context.Context, string, GenerateOptions) (string, error) {
	return "", ErrUnavailable
}
