package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/reelforge/reelforge/internal/models"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, content_id, task_id, kind, status, script_version, result, error, created_at, updated_at`

// Create records a newly dispatched generation task. The partial unique
// index on (content_id, kind) for non-terminal statuses makes this the
// atomic "no active task" check: a concurrent duplicate insert loses with
// models.ErrConflict.
func (r *TaskRepository) Create(t *models.GenerationTask) error {
	if t.ContentID == "" {
		return models.Validation("content_id")
	}
	if !t.Kind.Valid() {
		return models.Invalid("kind", "must be storyboard or stock_search")
	}
	if t.TaskID == "" {
		return models.Validation("task_id")
	}

	t.ID = uuid.New().String()
	t.Status = models.TaskStatusPending
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt

	_, err := r.db.Exec(`
		INSERT INTO generation_tasks (id, content_id, task_id, kind, status, script_version, result, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ContentID, t.TaskID, t.Kind, t.Status, t.ScriptVersion, nil, "", t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueErr(err) {
			return models.ErrConflict
		}
		if isForeignKeyErr(err) {
			return models.Invalid("content_id", "referenced content does not exist")
		}
		return unavailable("create task", err)
	}
	return nil
}

func (r *TaskRepository) scanTask(row interface{ Scan(...any) error }) (*models.GenerationTask, error) {
	t := &models.GenerationTask{}
	var result sql.NullString
	var errMsg sql.NullString

	err := row.Scan(&t.ID, &t.ContentID, &t.TaskID, &t.Kind, &t.Status, &t.ScriptVersion,
		&result, &errMsg, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if result.Valid && result.String != "" {
		t.Result = json.RawMessage(result.String)
	}
	t.Error = errMsg.String

	return t, nil
}

// GetByID returns a task by its internal ID
func (r *TaskRepository) GetByID(id string) (*models.GenerationTask, error) {
	row := r.db.QueryRow(`SELECT `+taskColumns+` FROM generation_tasks WHERE id = ?`, id)
	t, err := r.scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get task", err)
	}
	return t, nil
}

// GetActive returns the non-terminal task for a content+kind, if any
func (r *TaskRepository) GetActive(contentID string, kind models.TaskKind) (*models.GenerationTask, error) {
	row := r.db.QueryRow(`
		SELECT `+taskColumns+` FROM generation_tasks
		WHERE content_id = ? AND kind = ? AND status IN ('pending', 'running')`,
		contentID, kind)
	t, err := r.scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get active task", err)
	}
	return t, nil
}

// GetActiveAny returns the most recently dispatched non-terminal task for a
// content item regardless of kind, if any
func (r *TaskRepository) GetActiveAny(contentID string) (*models.GenerationTask, error) {
	row := r.db.QueryRow(`
		SELECT `+taskColumns+` FROM generation_tasks
		WHERE content_id = ? AND status IN ('pending', 'running')
		ORDER BY created_at DESC LIMIT 1`,
		contentID)
	t, err := r.scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get active task", err)
	}
	return t, nil
}

// GetLatest returns the most recent task for a content item in any status
func (r *TaskRepository) GetLatest(contentID string) (*models.GenerationTask, error) {
	row := r.db.QueryRow(`
		SELECT `+taskColumns+` FROM generation_tasks
		WHERE content_id = ?
		ORDER BY created_at DESC LIMIT 1`,
		contentID)
	t, err := r.scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get latest task", err)
	}
	return t, nil
}

// MarkRunning bumps a pending task to running. A no-op when the task has
// already moved on.
func (r *TaskRepository) MarkRunning(id string) error {
	_, err := r.db.Exec(`
		UPDATE generation_tasks SET status = 'running', updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		time.Now(), id)
	if err != nil {
		return unavailable("mark task running", err)
	}
	return nil
}

// MarkSucceeded transitions a non-terminal task to succeeded and stores the
// result payload. The returned claimed flag is the merge-once guard: false
// means another caller already claimed the terminal transition and the
// caller must not merge again.
func (r *TaskRepository) MarkSucceeded(id string, result json.RawMessage) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE generation_tasks SET status = 'succeeded', result = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'running')`,
		string(result), time.Now(), id)
	if err != nil {
		return false, unavailable("mark task succeeded", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("mark task succeeded", err)
	}
	return affected > 0, nil
}

// MarkFailed transitions a non-terminal task to failed with a
// human-readable message. Same claim semantics as MarkSucceeded.
func (r *TaskRepository) MarkFailed(id string, errMsg string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE generation_tasks SET status = 'failed', error = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'running')`,
		errMsg, time.Now(), id)
	if err != nil {
		return false, unavailable("mark task failed", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("mark task failed", err)
	}
	return affected > 0, nil
}
