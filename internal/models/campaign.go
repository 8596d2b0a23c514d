package models

import "time"

// Campaign represents a marketing initiative owned by exactly one client.
// Status is free-form at this layer; only content statuses are
// state-machine controlled.
type Campaign struct {
	ID              string     `json:"id"`
	ClientID        string     `json:"client_id"`
	ClientName      string     `json:"client_name,omitempty"` // joined field
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	Status          string     `json:"status"`
	Gender          string     `json:"gender"`
	Tone            string     `json:"tone"`
	Style           string     `json:"style"`
	TargetDuration  int        `json:"target_duration"` // seconds
	Voice           string     `json:"voice"`
	MusicVolume     float64    `json:"music_volume"` // 0.0-1.0
	PublishSchedule string     `json:"publish_schedule"`
	AutoDeploy      bool       `json:"auto_deploy"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CampaignWithStats includes content statistics
type CampaignWithStats struct {
	Campaign
	ContentCount int `json:"content_count"`
}

// CampaignListFilter for filtering campaigns
type CampaignListFilter struct {
	ClientID string
	Search   string
	Limit    int
	Offset   int
}
