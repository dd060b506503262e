package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"shiksharaha/internal/domain"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is a text-completion backend. The production implementation talks
// to Gemini; tests plug in a stub.
type Completer interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}

// Service assembles prompts and forwards them to the completer.
type Service struct {
	Completer Completer
	Log       *zap.Logger
}

func NewService(c Completer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Completer: c, Log: log}
}

const chatSystemPrompt = `You are an assistant for NGO staff designing education programs with the Logical Framework Approach (LFA).
You help with the seven LFA steps: problem definition, stakeholder analysis, problem tree, objective tree, results chain, logframe matrix, and monitoring indicators.
Answer concretely and briefly, grounded in LFA practice for education programs in low-resource settings. When the user is on a specific step, tailor advice to that step.`

// Chat forwards the conversation, prepending the fixed LFA persona. An empty
// message list is valid: the system prompt is forwarded alone.
func (s *Service) Chat(ctx context.Context, messages []Message) (Message, error) {
	s.Log.Info("assistant chat", zap.Int("messages", len(messages)))
	content, err := s.Completer.Complete(ctx, chatSystemPrompt, messages)
	if err != nil {
		return Message{}, fmt.Errorf("completion: %w", err)
	}
	return Message{Role: "assistant", Content: content}, nil
}

const reportPromptTemplate = `You are writing a program design review for an NGO education program designed with the Logical Framework Approach.

Program data (JSON):
%s

Write a Markdown report with exactly these sections:

## Executive Scorecard
Rate the overall design quality and summarize the program in a few sentences.

## Critical Analysis
Examine the causal logic: does the problem tree support the objective tree, does the results chain hold together, are the logframe assumptions realistic?

## Optimization Strategy
Concrete improvements to the weakest parts of the design.

## Execution Rulebook
Practical do's and don'ts for implementation and monitoring.

Be specific to the data provided; do not invent program details that are not there.`

// reportSummary is the reduced projection of a project embedded in the report
// prompt.
type reportSummary struct {
	Name              string         `json:"name"`
	Description       string         `json:"description,omitempty"`
	ProblemDefinition map[string]any `json:"problemDefinition,omitempty"`
	ProblemTree       map[string]any `json:"problemTree,omitempty"`
	ObjectiveTree     map[string]any `json:"objectiveTree,omitempty"`
	Logframe          map[string]any `json:"logframe,omitempty"`
	Monitoring        map[string]any `json:"monitoring,omitempty"`
}

// GenerateReport summarizes the project and asks the completer for a Markdown
// design review.
func (s *Service) GenerateReport(ctx context.Context, p domain.Project) (string, error) {
	summary := reportSummary{
		Name:              p.Name,
		Description:       p.Description,
		ProblemDefinition: p.Data["problemDefinition"],
		ProblemTree:       p.Data["problemTree"],
		ObjectiveTree:     p.Data["objectiveTree"],
		Logframe:          p.Data["logframe"],
		Monitoring:        p.Data["monitoring"],
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal project summary: %w", err)
	}
	prompt := fmt.Sprintf(reportPromptTemplate, string(data))
	s.Log.Info("assistant report", zap.String("project", p.ID), zap.String("name", p.Name))
	report, err := s.Completer.Complete(ctx, "", []Message{{Role: "user", Content: prompt}})
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}
	return strings.TrimSpace(report), nil
}
