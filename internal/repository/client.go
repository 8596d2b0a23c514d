package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/reelforge/reelforge/internal/models"
)

type ClientRepository struct {
	db *sql.DB
}

func NewClientRepository(db *sql.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// Create creates a new client
func (r *ClientRepository) Create(c *models.Client) error {
	if c.Name == "" {
		return models.Validation("name")
	}

	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	_, err := r.db.Exec(`
		INSERT INTO clients (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return unavailable("create client", err)
	}
	return nil
}

// GetByID returns a client by ID
func (r *ClientRepository) GetByID(id string) (*models.Client, error) {
	c := &models.Client{}
	err := r.db.QueryRow(`
		SELECT id, name, created_at, updated_at
		FROM clients WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get client", err)
	}
	return c, nil
}

// List returns clients with optional filtering
func (r *ClientRepository) List(filter models.ClientListFilter) ([]models.Client, int, error) {
	countQuery := "SELECT COUNT(*) FROM clients WHERE 1=1"
	args := []any{}

	if filter.Search != "" {
		countQuery += " AND name LIKE ?"
		args = append(args, "%"+filter.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, unavailable("count clients", err)
	}

	query := "SELECT id, name, created_at, updated_at FROM clients WHERE 1=1"
	args = []any{}
	if filter.Search != "" {
		query += " AND name LIKE ?"
		args = append(args, "%"+filter.Search+"%")
	}

	query += " ORDER BY created_at DESC"

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
		return nil, 0, unavailable("list clients", err)
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, unavailable("scan client", err)
		}
		clients = append(clients, c)
	}

	return clients, total, nil
}

// Delete deletes a client. Fails while campaigns still reference it.
func (r *ClientRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM clients WHERE id = ?", id)
	if err != nil {
		if isForeignKeyErr(err) {
			return models.ErrConflict
		}
		return unavailable("delete client", err)
	}
	return nil
}
