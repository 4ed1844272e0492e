package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"supermart/internal/domain"
	"supermart/internal/store"
)

type fakeGenerator struct {
	reply   string
	err     error
	block   bool
	prompts []string
	schemas int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if opts.Schema != nil {
		f.schemas++
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func TestGenerateProductsParsesDrafts(t *testing.T) {
	gen := &fakeGenerator{reply: `[
		{"name":"Mango Nectar","price":2.499,"stock":40,"description":"Sweet","category":"Drinks"},
		{"name":"","price":1,"stock":1,"description":"nameless","category":"Drinks"},
		{"name":"Free Water","price":0,"stock":5,"description":"free","category":"Drinks"},
		{"name":"Cola","price":1.25,"stock":-3,"description":"Fizzy","category":""}
	]`}
	a := New(gen, time.Second, 0)

	drafts, err := a.GenerateProducts(context.Background(), "Drinks", 5)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("expected 2 usable drafts, got %+v", drafts)
	}
	if drafts[0].Price.String() != "2.5" {
		t.Fatalf("expected price rounded to cents, got %s", drafts[0].Price)
	}
	if drafts[1].Category != "Drinks" || drafts[1].Stock != 0 {
		t.Fatalf("expected defaulted category and clamped stock, got %+v", drafts[1])
	}
	if gen.schemas != 1 || !strings.Contains(gen.prompts[0], `"Drinks"`) {
		t.Fatalf("expected structured prompt for Drinks, got %v", gen.prompts)
	}
}

func TestGenerateProductsFailures(t *testing.T) {
	ctx := context.Background()

	if _, err := New(&fakeGenerator{}, time.Second, 0).GenerateProducts(ctx, "  ", 3); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected missing category rejection, got %v", err)
	}
	if _, err := New(&fakeGenerator{reply: "not json"}, time.Second, 0).GenerateProducts(ctx, "Snacks", 3); !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected malformed response failure, got %v", err)
	}
	_, err := New(Unavailable{}, time.Second, 0).GenerateProducts(ctx, "Snacks", 3)
	if !errors.Is(err, ErrGenerationFailed) || !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable generation failure, got %v", err)
	}
}

func TestTextHelpersFallBack(t *testing.T) {
	a := New(&fakeGenerator{err: errors.New("quota exceeded")}, time.Second, 0)
	ctx := context.Background()

	if out, fallback := a.TranslateMessage(ctx, "Hola", "English"); out != "Hola" || !fallback {
		t.Fatalf("expected original text on failure, got %q fallback=%v", out, fallback)
	}
	if out, fallback := a.Autocorrect(ctx, "teh milk"); out != "teh milk" || !fallback {
		t.Fatalf("expected original text on failure, got %q fallback=%v", out, fallback)
	}
	history := []domain.ChatMessage{{SenderName: "John", Text: "Milk is out"}}
	if out, fallback := a.SuggestReply(ctx, history); out != "" || !fallback {
		t.Fatalf("expected empty suggestion on failure, got %q fallback=%v", out, fallback)
	}
}

func TestTextHelpersUseGenerator(t *testing.T) {
	gen := &fakeGenerator{reply: "  Hello there \n"}
	a := New(gen, time.Second, 0)

	out, fallback := a.TranslateMessage(context.Background(), "Hola", "")
	if out != "Hello there" || fallback {
		t.Fatalf("unexpected translation %q fallback=%v", out, fallback)
	}
	if !strings.Contains(gen.prompts[0], "Spanish") {
		t.Fatalf("expected default target language, got %q", gen.prompts[0])
	}

	var history []domain.ChatMessage
	for i := 0; i < 8; i++ {
		history = append(history, domain.ChatMessage{SenderName: "Ann", Text: strings.Repeat("x", i+1)})
	}
	if _, fallback := a.SuggestReply(context.Background(), history); fallback {
		t.Fatalf("unexpected fallback")
	}
	if strings.Contains(gen.prompts[1], "Ann: xx\\n") {
		t.Fatalf("expected only the latest messages in the prompt, got %q", gen.prompts[1])
	}
}

func TestCallTimesOut(t *testing.T) {
	a := New(&fakeGenerator{block: true}, 20*time.Millisecond, 0)
	start := time.Now()
	if out, fallback := a.Autocorrect(context.Background(), "slow"); out != "slow" || !fallback {
		t.Fatalf("expected fallback after timeout, got %q", out)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("timeout not applied")
	}
}
