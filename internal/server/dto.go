package server

import (
	"shiksharaha/internal/domain"
)

// Request payloads

type CreateProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	TemplateID  *string `json:"template_id,omitempty"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"draft,in_progress,review,completed"`
}

type RegisterRequest struct {
	Name         string `json:"name,omitempty"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Organization string `json:"organization,omitempty"`
	Role         string `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type InviteMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

type CreateDiscussionRequest struct {
	Title string `json:"title"`
}

type AddReplyRequest struct {
	Text string `json:"text"`
}

// Response payloads

type ProjectResponse struct {
	ID             string                    `json:"id"`
	Name           string                    `json:"name"`
	Description    string                    `json:"description,omitempty"`
	Status         string                    `json:"status" enum:"draft,in_progress,review,completed"`
	CurrentStep    int                       `json:"current_step" minimum:"1" maximum:"7"`
	Progress       int                       `json:"progress" minimum:"0" maximum:"100"`
	Data           map[string]map[string]any `json:"data"`
	CompletedSteps []int                     `json:"completed_steps"`
	CreatedAt      string                    `json:"created_at" format:"date-time"`
	UpdatedAt      string                    `json:"updated_at" format:"date-time"`
}

type SessionResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token,omitempty"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Actor      string `json:"actor"`
	Payload    string `json:"payload_json"`
}

// Conversion helpers

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Status:         p.Status,
		CurrentStep:    p.CurrentStep,
		Progress:       p.Progress,
		Data:           nonNilData(p.Data),
		CompletedSteps: nonNilSlice(p.CompletedSteps),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	res := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		res = append(res, projectResponse(p))
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse(e)
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func nonNilData(in map[string]map[string]any) map[string]map[string]any {
	if in == nil {
		return map[string]map[string]any{}
	}
	return in
}
