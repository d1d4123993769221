package llmservice

import (
	"context"
	"errors"
	"testing"

	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	got   []llms.MessageContent
	reply *llms.ContentResponse
	err   error
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = messages
	return f.reply, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestClient_Answer(t *testing.T) {
	m := &fakeModel{reply: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "42"}}}}
	c := NewWithModel(m)

	got, err := c.Answer(context.Background(), "be brief", "what is it?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got != "42" {
		t.Fatalf("Answer = %q, want 42", got)
	}
	if len(m.got) != 2 {
		t.Fatalf("sent %d messages, want 2", len(m.got))
	}
	if m.got[0].Role != llms.ChatMessageTypeSystem || m.got[1].Role != llms.ChatMessageTypeHuman {
		t.Fatalf("roles = %s, %s", m.got[0].Role, m.got[1].Role)
	}
	if txt, ok := m.got[1].Parts[0].(llms.TextContent); !ok || txt.Text != "what is it?" {
		t.Fatalf("user part = %#v", m.got[1].Parts[0])
	}
}

func TestClient_Answer_Errors(t *testing.T) {
	boom := errors.New("boom")
	if _, err := NewWithModel(&fakeModel{err: boom}).Answer(context.Background(), "", "q"); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if _, err := NewWithModel(&fakeModel{reply: &llms.ContentResponse{}}).Answer(context.Background(), "", "q"); err == nil {
		t.Fatal("Answer with no choices succeeded")
	}
}
