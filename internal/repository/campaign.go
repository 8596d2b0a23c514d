package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/reelforge/reelforge/internal/models"
)

type CampaignRepository struct {
	db *sql.DB
}

func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create creates a new campaign. The referenced client must exist.
func (r *CampaignRepository) Create(c *models.Campaign) error {
	if c.ClientID == "" {
		return models.Validation("client_id")
	}
	if c.Name == "" {
		return models.Validation("name")
	}
	if c.MusicVolume < 0 || c.MusicVolume > 1 {
		return models.Invalid("music_volume", "must be between 0.0 and 1.0")
	}

	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	_, err := r.db.Exec(`
		INSERT INTO campaigns (id, client_id, name, description, start_date, end_date, status,
			gender, tone, style, target_duration, voice, music_volume, publish_schedule, auto_deploy,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ClientID, c.Name, c.Description, c.StartDate, c.EndDate, c.Status,
		c.Gender, c.Tone, c.Style, c.TargetDuration, c.Voice, c.MusicVolume, c.PublishSchedule, c.AutoDeploy,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyErr(err) {
			return models.Invalid("client_id", "referenced client does not exist")
		}
		return unavailable("create campaign", err)
	}
	return nil
}

// GetByID returns a campaign by ID
func (r *CampaignRepository) GetByID(id string) (*models.Campaign, error) {
	c := &models.Campaign{}
	var clientName, description, status, gender, tone, style, voice, schedule sql.NullString
	var startDate, endDate sql.NullTime

	err := r.db.QueryRow(`
		SELECT c.id, c.client_id, cl.name, c.name, c.description, c.start_date, c.end_date, c.status,
			c.gender, c.tone, c.style, c.target_duration, c.voice, c.music_volume, c.publish_schedule,
			c.auto_deploy, c.created_at, c.updated_at
		FROM campaigns c
		LEFT JOIN clients cl ON c.client_id = cl.id
		WHERE c.id = ?`, id,
	).Scan(&c.ID, &c.ClientID, &clientName, &c.Name, &description, &startDate, &endDate, &status,
		&gender, &tone, &style, &c.TargetDuration, &voice, &c.MusicVolume, &schedule,
		&c.AutoDeploy, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get campaign", err)
	}

	c.ClientName = clientName.String
	c.Description = description.String
	c.Status = status.String
	c.Gender = gender.String
	c.Tone = tone.String
	c.Style = style.String
	c.Voice = voice.String
	c.PublishSchedule = schedule.String
	if startDate.Valid {
		c.StartDate = &startDate.Time
	}
	if endDate.Valid {
		c.EndDate = &endDate.Time
	}

	return c, nil
}

// List returns campaigns with optional filtering
func (r *CampaignRepository) List(filter models.CampaignListFilter) ([]models.CampaignWithStats, int, error) {
	countQuery := "SELECT COUNT(*) FROM campaigns WHERE 1=1"
	args := []any{}

	if filter.ClientID != "" {
		countQuery += " AND client_id = ?"
		args = append(args, filter.ClientID)
	}
	if filter.Search != "" {
		countQuery += " AND (name LIKE ? OR description LIKE ?)"
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, unavailable("count campaigns", err)
	}

	query := `
		SELECT c.id, c.client_id, cl.name, c.name, c.description, c.start_date, c.end_date, c.status,
			c.gender, c.tone, c.style, c.target_duration, c.voice, c.music_volume, c.publish_schedule,
			c.auto_deploy, c.created_at, c.updated_at,
			COALESCE((SELECT COUNT(*) FROM contents WHERE campaign_id = c.id), 0) as content_count
		FROM campaigns c
		LEFT JOIN clients cl ON c.client_id = cl.id
		WHERE 1=1`

	args = []any{}
	if filter.ClientID != "" {
		query += " AND c.client_id = ?"
		args = append(args, filter.ClientID)
	}
	if filter.Search != "" {
		query += " AND (c.name LIKE ? OR c.description LIKE ?)"
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
	}

	query += " ORDER BY c.updated_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, unavailable("list campaigns", err)
	}
	defer rows.Close()

	campaigns := []models.CampaignWithStats{}
	for rows.Next() {
		var c models.CampaignWithStats
		var clientName, description, status, gender, tone, style, voice, schedule sql.NullString
		var startDate, endDate sql.NullTime

		err := rows.Scan(&c.ID, &c.ClientID, &clientName, &c.Name, &description, &startDate, &endDate, &status,
			&gender, &tone, &style, &c.TargetDuration, &voice, &c.MusicVolume, &schedule,
			&c.AutoDeploy, &c.CreatedAt, &c.UpdatedAt, &c.ContentCount)
		if err != nil {
			return nil, 0, unavailable("scan campaign", err)
		}

		c.ClientName = clientName.String
		c.Description = description.String
		c.Status = status.String
		c.Gender = gender.String
		c.Tone = tone.String
		c.Style = style.String
		c.Voice = voice.String
		c.PublishSchedule = schedule.String
		if startDate.Valid {
			c.StartDate = &startDate.Time
		}
		if endDate.Valid {
			c.EndDate = &endDate.Time
		}

		campaigns = append(campaigns, c)
	}

	return campaigns, total, nil
}
