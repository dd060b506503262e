package domain

type Project struct {
	ID             string                    `json:"id"`
	Name           string                    `json:"name"`
	Description    string                    `json:"description,omitempty"`
	Status         string                    `json:"status" enum:"draft,in_progress,review,completed"`
	CurrentStep    int                       `json:"current_step" minimum:"1" maximum:"7"`
	Progress       int                       `json:"progress" minimum:"0" maximum:"100"`
	Data           map[string]map[string]any `json:"data,omitempty"`
	CompletedSteps []int                     `json:"completed_steps,omitempty"`
	CreatedAt      string                    `json:"created_at" format:"date-time"`
	UpdatedAt      string                    `json:"updated_at" format:"date-time"`
}

type User struct {
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	Organization string `json:"organization,omitempty"`
	Role         string `json:"role,omitempty"`
	Onboarded    bool   `json:"onboarded"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Member struct {
	Email     string `json:"email"`
	Role      string `json:"role,omitempty"`
	Status    string `json:"status" enum:"invited,active"`
	InvitedAt string `json:"invited_at" format:"date-time"`
}

type Discussion struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	ReplyCount int    `json:"reply_count"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type Reply struct {
	ID           string `json:"id"`
	DiscussionID string `json:"discussion_id"`
	Author       string `json:"author"`
	Text         string `json:"text"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type EarnedBadge struct {
	BadgeID  string `json:"badge_id"`
	EarnedAt string `json:"earned_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Actor      string `json:"actor"`
	Payload    string `json:"payload_json"`
}
