package models

import "time"

// ContentStatus is the state-machine-controlled lifecycle status of a
// content item. Transitions:
//
//	draft -> scheduled -> generating -> ready -> published
//
// failed is reachable from generating only; failed -> generating is the
// sole retry edge. draft and scheduled may also enter generating directly.
type ContentStatus string

const (
	ContentStatusDraft      ContentStatus = "draft"
	ContentStatusScheduled  ContentStatus = "scheduled"
	ContentStatusGenerating ContentStatus = "generating"
	ContentStatusReady      ContentStatus = "ready"
	ContentStatusPublished  ContentStatus = "published"
	ContentStatusFailed     ContentStatus = "failed"
)

// CanStartGeneration reports whether a generation job may be dispatched
// from this status.
func (s ContentStatus) CanStartGeneration() bool {
	switch s {
	case ContentStatusDraft, ContentStatusScheduled, ContentStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further automatic transition occurs.
func (s ContentStatus) Terminal() bool {
	return s == ContentStatusPublished
}

// Content is a scheduled content unit within a campaign. Its script lives
// in the script store; its generation tasks live in generation_tasks.
type Content struct {
	ID             string        `json:"id"`
	CampaignID     string        `json:"campaign_id"`
	CampaignName   string        `json:"campaign_name,omitempty"` // joined field
	Subtitle       string        `json:"subtitle"`
	Topic          string        `json:"topic"`
	Platform       string        `json:"platform"` // e.g. "Youtube"
	PublishDate    time.Time     `json:"publish_date"`
	Status         ContentStatus `json:"status"`
	TargetAudience string        `json:"target_audience"`
	Keywords       string        `json:"keywords"`
	Notes          string        `json:"notes"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ContentListFilter for filtering contents
type ContentListFilter struct {
	CampaignID string
	Status     ContentStatus
	Limit      int
	Offset     int
}
