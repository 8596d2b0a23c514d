package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/reelforge/reelforge/internal/models"
)

type ContentRepository struct {
	db *sql.DB
}

func NewContentRepository(db *sql.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Create creates a new content item in draft status. PublishDate defaults
// to the creation date when unset.
func (r *ContentRepository) Create(c *models.Content) error {
	if c.CampaignID == "" {
		return models.Validation("campaign_id")
	}
	if c.Subtitle == "" {
		return models.Validation("subtitle")
	}

	c.ID = uuid.New().String()
	c.Status = models.ContentStatusDraft
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	if c.PublishDate.IsZero() {
		c.PublishDate = c.CreatedAt
	}

	_, err := r.db.Exec(`
		INSERT INTO contents (id, campaign_id, subtitle, topic, platform, publish_date, status,
			target_audience, keywords, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CampaignID, c.Subtitle, c.Topic, c.Platform, c.PublishDate, c.Status,
		c.TargetAudience, c.Keywords, c.Notes, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyErr(err) {
			return models.Invalid("campaign_id", "referenced campaign does not exist")
		}
		return unavailable("create content", err)
	}
	return nil
}

// GetByID returns a content item by ID
func (r *ContentRepository) GetByID(id string) (*models.Content, error) {
	c := &models.Content{}
	var campaignName, topic, platform, audience, keywords, notes sql.NullString

	err := r.db.QueryRow(`
		SELECT c.id, c.campaign_id, cam.name, c.subtitle, c.topic, c.platform, c.publish_date,
			c.status, c.target_audience, c.keywords, c.notes, c.created_at, c.updated_at
		FROM contents c
		LEFT JOIN campaigns cam ON c.campaign_id = cam.id
		WHERE c.id = ?`, id,
	).Scan(&c.ID, &c.CampaignID, &campaignName, &c.Subtitle, &topic, &platform, &c.PublishDate,
		&c.Status, &audience, &keywords, &notes, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get content", err)
	}

	c.CampaignName = campaignName.String
	c.Topic = topic.String
	c.Platform = platform.String
	c.TargetAudience = audience.String
	c.Keywords = keywords.String
	c.Notes = notes.String

	return c, nil
}

// List returns contents with optional filtering
func (r *ContentRepository) List(filter models.ContentListFilter) ([]models.Content, int, error) {
	countQuery := "SELECT COUNT(*) FROM contents WHERE 1=1"
	args := []any{}

	if filter.CampaignID != "" {
		countQuery += " AND campaign_id = ?"
		args = append(args, filter.CampaignID)
	}
	if filter.Status != "" {
		countQuery += " AND status = ?"
		args = append(args, filter.Status)
	}

	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, unavailable("count contents", err)
	}

	query := `
		SELECT c.id, c.campaign_id, cam.name, c.subtitle, c.topic, c.platform, c.publish_date,
			c.status, c.target_audience, c.keywords, c.notes, c.created_at, c.updated_at
		FROM contents c
		LEFT JOIN campaigns cam ON c.campaign_id = cam.id
		WHERE 1=1`

	args = []any{}
	if filter.CampaignID != "" {
		query += " AND c.campaign_id = ?"
		args = append(args, filter.CampaignID)
	}
	if filter.Status != "" {
		query += " AND c.status = ?"
		args = append(args, filter.Status)
	}

	query += " ORDER BY c.publish_date ASC"

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
		return nil, 0, unavailable("list contents", err)
	}
	defer rows.Close()

	contents := []models.Content{}
	for rows.Next() {
		var c models.Content
		var campaignName, topic, platform, audience, keywords, notes sql.NullString

		err := rows.Scan(&c.ID, &c.CampaignID, &campaignName, &c.Subtitle, &topic, &platform, &c.PublishDate,
			&c.Status, &audience, &keywords, &notes, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, 0, unavailable("scan content", err)
		}

		c.CampaignName = campaignName.String
		c.Topic = topic.String
		c.Platform = platform.String
		c.TargetAudience = audience.String
		c.Keywords = keywords.String
		c.Notes = notes.String

		contents = append(contents, c)
	}

	return contents, total, nil
}

// UpdateStatus transitions a content item from any of the given statuses.
// Returns false when the content was not in an allowed source status, which
// callers treat as a state conflict.
func (r *ContentRepository) UpdateStatus(id string, from []models.ContentStatus, to models.ContentStatus) (bool, error) {
	if len(from) == 0 {
		return false, models.Validation("from")
	}

	query := "UPDATE contents SET status = ?, updated_at = ? WHERE id = ? AND status IN (?"
	args := []any{to, time.Now(), id, from[0]}
	for _, s := range from[1:] {
		query += ", ?"
		args = append(args, s)
	}
	query += ")"

	res, err := r.db.Exec(query, args...)
	if err != nil {
		return false, unavailable("update content status", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("update content status", err)
	}
	return affected > 0, nil
}

// UpdatePublishDate sets the publish date
func (r *ContentRepository) UpdatePublishDate(id string, publishDate time.Time) error {
	_, err := r.db.Exec("UPDATE contents SET publish_date = ?, updated_at = ? WHERE id = ?",
		publishDate, time.Now(), id)
	if err != nil {
		return unavailable("update publish date", err)
	}
	return nil
}
