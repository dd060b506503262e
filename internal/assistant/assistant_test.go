package assistant

import (
	"context"
	"strings"
	"testing"

	"shiksharaha/internal/domain"
)

type recordingCompleter struct {
	system   string
	messages []Message
	reply    string
}

func (c *recordingCompleter) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	c.system = system
	c.messages = messages
	return c.reply, nil
}

func TestChatCarriesPersona(t *testing.T) {
	rec := &recordingCompleter{reply: "Start with a problem statement."}
	svc := NewService(rec, nil)
	msg, err := svc.Chat(context.Background(), []Message{
		{Role: "user", Content: "Where do I start?"},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if msg.Role != "assistant" || msg.Content != rec.reply {
		t.Fatalf("unexpected reply: %+v", msg)
	}
	if !strings.Contains(rec.system, "Logical Framework Approach") {
		t.Fatalf("expected LFA persona in system prompt, got %q", rec.system)
	}
	if len(rec.messages) != 1 || rec.messages[0].Content != "Where do I start?" {
		t.Fatalf("conversation not forwarded: %+v", rec.messages)
	}
}

func TestChatEmptyConversation(t *testing.T) {
	rec := &recordingCompleter{reply: "Hello!"}
	svc := NewService(rec, nil)
	if _, err := svc.Chat(context.Background(), nil); err != nil {
		t.Fatalf("empty conversation should be valid: %v", err)
	}
	if len(rec.messages) != 0 {
		t.Fatalf("expected no turns forwarded, got %+v", rec.messages)
	}
}

func TestGenerateReportPrompt(t *testing.T) {
	rec := &recordingCompleter{reply: "  # Report  \n"}
	svc := NewService(rec, nil)
	p := domain.Project{
		ID:   "p1",
		Name: "Girls Literacy",
		Data: map[string]map[string]any{
			"problemDefinition": {"statement": "Low literacy among girls aged 6-14"},
			"stakeholders":      {"groups": []any{"parents"}},
		},
	}
	out, err := svc.GenerateReport(context.Background(), p)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if out != "# Report" {
		t.Fatalf("expected trimmed report, got %q", out)
	}
	if len(rec.messages) != 1 {
		t.Fatalf("expected single prompt turn, got %d", len(rec.messages))
	}
	prompt := rec.messages[0].Content
	if !strings.Contains(prompt, "Girls Literacy") || !strings.Contains(prompt, "Low literacy") {
		t.Fatalf("prompt missing program data: %q", prompt)
	}
	if !strings.Contains(prompt, "Executive Scorecard") {
		t.Fatalf("prompt missing section layout: %q", prompt)
	}
	// only designated steps feed the report
	if strings.Contains(prompt, "parents") {
		t.Fatalf("stakeholders should not be part of the report summary")
	}
}
