package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"supermart/internal/domain"
	"supermart/internal/store"
)

var ErrGenerationFailed = errors.New("product generation failed")

const (
	defaultProductCount = 5
	maxProductCount     = 20
	defaultLanguage     = "Spanish"
	suggestContextSize  = 5
)

// ProductDraft is a generated product before it receives an id and barcode.
type ProductDraft struct {
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Description string          `json:"description"`
}

var productSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":        {Type: genai.TypeString},
			"price":       {Type: genai.TypeNumber},
			"stock":       {Type: genai.TypeInteger},
			"description": {Type: genai.TypeString},
			"category":    {Type: genai.TypeString},
		},
		Required: []string{"name", "price", "stock", "description", "category"},
	},
}

// Assistant wraps a Generator with a per-call timeout, request pacing and
// fallbacks. It never touches the ledger.
type Assistant struct {
	gen     Generator
	timeout time.Duration
	limiter *rate.Limiter
}

func New(gen Generator, timeout time.Duration, perMinute int) *Assistant {
	if gen == nil {
		gen = Unavailable{}
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	return &Assistant{gen: gen, timeout: timeout, limiter: limiter}
}

func (a *Assistant) call(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	text, err := a.gen.Generate(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// GenerateProducts asks for count products in category. Invalid drafts are
// dropped; an empty or unparsable response is an error.
func (a *Assistant) GenerateProducts(ctx context.Context, category string, count int) ([]ProductDraft, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", store.ErrInvalidTransaction)
	}
	if count <= 0 {
		count = defaultProductCount
	}
	if count > maxProductCount {
		count = maxProductCount
	}

	prompt := fmt.Sprintf("Generate %d realistic supermarket products for the category %q. "+
		"Include a creative name, a realistic price (USD), initial stock count (between 10 and 100), and a short description.",
		count, category)
	text, err := a.call(ctx, prompt, GenerateOptions{Schema: productSchema})
	if err != nil {
		log.Printf("[assistant] WARN: generate products category=%s: %v", category, err)
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	var raw []ProductDraft
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		log.Printf("[assistant] WARN: decode generated products: %v", err)
		return nil, fmt.Errorf("%w: malformed response", ErrGenerationFailed)
	}

	drafts := make([]ProductDraft, 0, len(raw))
	for _, d := range raw {
		d.Name = strings.TrimSpace(d.Name)
		d.Category = strings.TrimSpace(d.Category)
		if d.Category == "" {
			d.Category = category
		}
		if d.Name == "" || !d.Price.IsPositive() {
			continue
		}
		d.Price = d.Price.Round(2)
		if d.Stock < 0 {
			d.Stock = 0
		}
		drafts = append(drafts, d)
		if len(drafts) == count {
			break
		}
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: no usable products", ErrGenerationFailed)
	}
	return drafts, nil
}

// TranslateMessage returns the translation, or the original text with
// fallback set when the generator fails.
func (a *Assistant) TranslateMessage(ctx context.Context, text string, language string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return text, false
	}
	language = strings.TrimSpace(language)
	if language == "" {
		language = defaultLanguage
	}
	prompt := fmt.Sprintf("Translate the following message to %s: %q. Only return the translated text.", language, text)
	out, err := a.call(ctx, prompt, GenerateOptions{})
	if err != nil || out == "" {
		logFallback("translate", err)
		return text, true
	}
	return out, false
}

// SuggestReply proposes a reply to the latest chat messages. It returns an
// empty suggestion on failure.
func (a *Assistant) SuggestReply(ctx context.Context, history []domain.ChatMessage) (string, bool) {
	if len(history) == 0 {
		return "", true
	}
	if len(history) > suggestContextSize {
		history = history[len(history)-suggestContextSize:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, m.SenderName+": "+m.Text)
	}
	prompt := fmt.Sprintf("Based on the last few messages in this staff chat, suggest a helpful, professional, and short reply: %q",
		strings.Join(lines, "\n"))
	out, err := a.call(ctx, prompt, GenerateOptions{})
	if err != nil || out == "" {
		logFallback("suggest", err)
		return "", true
	}
	return out, false
}

// Autocorrect fixes spelling and grammar, falling back to the input.
func (a *Assistant) Autocorrect(ctx context.Context, text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return text, false
	}
	prompt := fmt.Sprintf("Strictly correct any spelling or grammar errors in the following text, and keep the tone professional but friendly. "+
		"Do not add any conversational filler, just return the corrected text: %q", text)
	out, err := a.call(ctx, prompt, GenerateOptions{})
	if err != nil || out == "" {
		logFallback("autocorrect", err)
		return text, true
	}
	return out, false
}

func logFallback(op string, err error) {
	if err == nil {
		err = errors.New("empty response")
	}
	log.Printf("[assistant] WARN: %s fell back: %v", op, err)
}
