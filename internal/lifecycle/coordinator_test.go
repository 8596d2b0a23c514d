package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/reelforge/reelforge/internal/db"
	"github.com/reelforge/reelforge/internal/models"
	"github.com/reelforge/reelforge/internal/repository"
	"github.com/reelforge/reelforge/internal/script"
	"github.com/reelforge/reelforge/internal/studio"
)

// fakeGateway counts submissions and hands out sequential task ids
type fakeGateway struct {
	mu      sync.Mutex
	calls   int32
	fail    bool
	lastKey string
}

func (g *fakeGateway) Submit(ctx context.Context, kind string, payload json.RawMessage) (string, error) {
	atomic.AddInt32(&g.calls, 1)
	if g.fail {
		return "", errors.New("studio unreachable")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastKey = kind
	return fmt.Sprintf("remote-%d", atomic.LoadInt32(&g.calls)), nil
}

// fakePoller returns a fixed result per call
type fakePoller struct {
	result studio.PollResult
}

func (p *fakePoller) Poll(ctx context.Context, taskID string) studio.PollResult {
	return p.result
}

type fixture struct {
	coord    *Coordinator
	contents *repository.ContentRepository
	tasks    *repository.TaskRepository
	scripts  *script.Store
	gateway  *fakeGateway
	poller   *fakePoller
	content  *models.Content
}

func setup(t *testing.T) *fixture {
	t.Helper()

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	database.SetMaxOpenConns(1)
	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	scripts, err := script.NewStore(filepath.Join(t.TempDir(), "scripts.db"))
	if err != nil {
		t.Fatalf("failed to open script store: %v", err)
	}
	t.Cleanup(func() { scripts.Close() })

	content := seedContent(t, database.DB)

	gateway := &fakeGateway{}
	poller := &fakePoller{}
	contents := repository.NewContentRepository(database.DB)
	tasks := repository.NewTaskRepository(database.DB)

	coord := New(contents, tasks, scripts, gateway, poller, slog.New(slog.NewTextHandler(io.Discard, nil)))

	return &fixture{
		coord:    coord,
		contents: contents,
		tasks:    tasks,
		scripts:  scripts,
		gateway:  gateway,
		poller:   poller,
		content:  content,
	}
}

func seedContent(t *testing.T, d *sql.DB) *models.Content {
	t.Helper()
	client := &models.Client{Name: "Acme"}
	if err := repository.NewClientRepository(d).Create(client); err != nil {
		t.Fatalf("failed to seed client: %v", err)
	}
	campaign := &models.Campaign{ClientID: client.ID, Name: "Spring", MusicVolume: 0.5}
	if err := repository.NewCampaignRepository(d).Create(campaign); err != nil {
		t.Fatalf("failed to seed campaign: %v", err)
	}
	content := &models.Content{CampaignID: campaign.ID, Subtitle: "Teaser", Platform: "Youtube"}
	if err := repository.NewContentRepository(d).Create(content); err != nil {
		t.Fatalf("failed to seed content: %v", err)
	}
	return content
}

func mustStatus(t *testing.T, f *fixture, want models.ContentStatus) {
	t.Helper()
	c, err := f.contents.GetByID(f.content.ID)
	if err != nil {
		t.Fatalf("failed to reload content: %v", err)
	}
	if c.Status != want {
		t.Fatalf("content status = %s, want %s", c.Status, want)
	}
}

func TestStartGenerationDispatches(t *testing.T) {
	f := setup(t)

	task, err := f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKindStoryboard, json.RawMessage(`{"prompt":"beach"}`))
	if err != nil {
		t.Fatalf("StartGeneration failed: %v", err)
	}
	if task.TaskID == "" {
		t.Error("expected a remote task id")
	}
	if task.ScriptVersion != 0 {
		t.Errorf("expected script version 0 before any edit, got %d", task.ScriptVersion)
	}
	mustStatus(t, f, models.ContentStatusGenerating)
}

func TestStartGenerationRejectsInvalidKind(t *testing.T) {
	f := setup(t)

	_, err := f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKind("render"), nil)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.gateway.calls != 0 {
		t.Error("gateway must not be contacted for an invalid kind")
	}
}

func TestStartGenerationConflictSkipsGateway(t *testing.T) {
	f := setup(t)

	if _, err := f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKindStoryboard, nil); err != nil {
		t.Fatalf("first dispatch failed: %v", err)
	}

	calls := f.gateway.calls
	_, err := f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKindStoryboard, nil)
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if f.gateway.calls != calls {
		t.Error("gateway must not be contacted when the content is already generating")
	}
}

func TestStartGenerationConcurrentSingleWinner(t *testing.T) {
	f := setup(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKindStoryboard, nil)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, models.ErrConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly 1 winning dispatch, got %d", winners)
	}
	mustStatus(t, f, models.ContentStatusGenerating)
}

func TestStartGenerationGatewayFailureLeavesDraft(t *testing.T) {
	f := setup(t)
	f.gateway.fail = true

	_, err := f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKindStockSearch, nil)
	if !errors.Is(err, models.ErrDispatchFailed) {
		t.Fatalf("expected dispatch failure, got %v", err)
	}

	mustStatus(t, f, models.ContentStatusDraft)
	task, err := f.tasks.GetActiveAny(f.content.ID)
	if err != nil {
		t.Fatalf("failed to query tasks: %v", err)
	}
	if task != nil {
		t.Error("no task row may be recorded when dispatch fails")
	}
}

func TestStartGenerationUnknownContent(t *testing.T) {
	f := setup(t)

	_, err := f.coord.StartGeneration(context.Background(), "missing", models.TaskKindStoryboard, nil)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCheckStatusRunningBumpsTask(t *testing.T) {
	f := setup(t)
	task, err := f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKindStoryboard, nil)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	f.poller.result = studio.PollResult{Status: models.TaskStatusRunning, Progress: 40}
	report, err := f.coord.CheckStatus(context.Background(), f.content.ID)
	if err != nil {
		t.Fatalf("CheckStatus failed: %v", err)
	}
	if report.Progress != 40 {
		t.Errorf("progress = %d, want 40", report.Progress)
	}
	if report.ContentStatus != models.ContentStatusGenerating {
		t.Errorf("content status = %s, want generating", report.ContentStatus)
	}

	stored, err := f.tasks.GetActiveAny(f.content.ID)
	if err != nil {
		t.Fatalf("failed to reload task: %v", err)
	}
	if stored.ID != task.ID || stored.Status != models.TaskStatusRunning {
		t.Errorf("task not bumped to running: %+v", stored)
	}
}

func TestCheckStatusMergesSuccess(t *testing.T) {
	f := setup(t)
	if _, err := f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKindStoryboard, nil); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	blocks := json.RawMessage(`[{"type":"shot","text":"open on beach"},{"type":"voiceover","text":"summer is here"}]`)
	f.poller.result = studio.PollResult{Status: models.TaskStatusSucceeded, Result: blocks}

	report, err := f.coord.CheckStatus(context.Background(), f.content.ID)
	if err != nil {
		t.Fatalf("CheckStatus failed: %v", err)
	}
	if report.ContentStatus != models.ContentStatusReady {
		t.Errorf("content status = %s, want ready", report.ContentStatus)
	}
	if report.StaleResult {
		t.Error("merge must not be stale without user edits")
	}

	sc, err := f.scripts.Get(f.content.ID)
	if err != nil {
		t.Fatalf("script not written: %v", err)
	}
	if len(sc.Blocks) != 2 {
		t.Errorf("expected 2 blocks, got %d", len(sc.Blocks))
	}
	if sc.Version != 1 {
		t.Errorf("script version = %d, want 1", sc.Version)
	}
	mustStatus(t, f, models.ContentStatusReady)
}

func TestCheckStatusMergeIsIdempotent(t *testing.T) {
	f := setup(t)
	if _, err := f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKindStoryboard, nil); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	f.poller.result = studio.PollResult{
		Status: models.TaskStatusSucceeded,
		Result: json.RawMessage(`[{"type":"shot","text":"open on beach"}]`),
	}

	for i := 0; i < 5; i++ {
		if _, err := f.coord.CheckStatus(context.Background(), f.content.ID); err != nil {
			t.Fatalf("CheckStatus %d failed: %v", i, err)
		}
	}

	sc, err := f.scripts.Get(f.content.ID)
	if err != nil {
		t.Fatalf("script not written: %v", err)
	}
	if sc.Version != 1 {
		t.Errorf("script version = %d after repeated checks, want 1", sc.Version)
	}
	mustStatus(t, f, models.ContentStatusReady)
}

func TestCheckStatusStaleMergeKeepsUserEdit(t *testing.T) {
	f := setup(t)
	if _, err := f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKindStoryboard, nil); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	// User edits while the job is in flight
	userBlocks := []json.RawMessage{json.RawMessage(`{"type":"shot","text":"my own cut"}`)}
	if _, err := f.scripts.Replace(f.content.ID, userBlocks); err != nil {
		t.Fatalf("user edit failed: %v", err)
	}

	f.poller.result = studio.PollResult{
		Status: models.TaskStatusSucceeded,
		Result: json.RawMessage(`[{"type":"shot","text":"generated cut"}]`),
	}

	report, err := f.coord.CheckStatus(context.Background(), f.content.ID)
	if err != nil {
		t.Fatalf("CheckStatus failed: %v", err)
	}
	if !report.StaleResult {
		t.Fatal("expected stale_result for a superseded merge")
	}
	if report.ContentStatus != models.ContentStatusReady {
		t.Errorf("content status = %s, want ready", report.ContentStatus)
	}

	sc, err := f.scripts.Get(f.content.ID)
	if err != nil {
		t.Fatalf("failed to read script: %v", err)
	}
	if string(sc.Blocks[0]) != string(userBlocks[0]) {
		t.Errorf("user edit overwritten: %s", sc.Blocks[0])
	}

	// The result still lives on the task row
	latest, err := f.tasks.GetLatest(f.content.ID)
	if err != nil {
		t.Fatalf("failed to read task: %v", err)
	}
	if latest.Status != models.TaskStatusSucceeded || len(latest.Result) == 0 {
		t.Errorf("succeeded result not retained on task: %+v", latest)
	}
}

func TestCheckStatusFailureRecordsError(t *testing.T) {
	f := setup(t)
	if _, err := f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKindStoryboard, nil); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	f.poller.result = studio.PollResult{Status: models.TaskStatusFailed, Error: "no assets found"}
	report, err := f.coord.CheckStatus(context.Background(), f.content.ID)
	if err != nil {
		t.Fatalf("CheckStatus failed: %v", err)
	}
	if report.ContentStatus != models.ContentStatusFailed {
		t.Errorf("content status = %s, want failed", report.ContentStatus)
	}
	if report.Task.Error != "no assets found" {
		t.Errorf("task error = %q", report.Task.Error)
	}
	mustStatus(t, f, models.ContentStatusFailed)

	// failed is a generatable status: retry dispatches a fresh task
	if _, err := f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKindStoryboard, nil); err != nil {
		t.Fatalf("retry after failure rejected: %v", err)
	}
	mustStatus(t, f, models.ContentStatusGenerating)
}

func TestCheckStatusTransientPollMutatesNothing(t *testing.T) {
	f := setup(t)
	if _, err := f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKindStoryboard, nil); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	f.poller.result = studio.PollResult{Status: models.TaskStatusFailed, Error: "transport: connection refused", Transient: true}
	report, err := f.coord.CheckStatus(context.Background(), f.content.ID)
	if err != nil {
		t.Fatalf("CheckStatus failed: %v", err)
	}
	if report.PollError == "" {
		t.Error("expected poll_error to be surfaced")
	}
	if report.ContentStatus != models.ContentStatusGenerating {
		t.Errorf("content status = %s, want generating", report.ContentStatus)
	}

	task, err := f.tasks.GetActiveAny(f.content.ID)
	if err != nil {
		t.Fatalf("failed to reload task: %v", err)
	}
	if task == nil {
		t.Fatal("task must stay active through a transient poll failure")
	}
}

func TestCheckStatusMalformedResultIsTransient(t *testing.T) {
	f := setup(t)
	if _, err := f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKindStoryboard, nil); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	f.poller.result = studio.PollResult{Status: models.TaskStatusSucceeded, Result: json.RawMessage(`{"not":"a list"}`)}
	report, err := f.coord.CheckStatus(context.Background(), f.content.ID)
	if err != nil {
		t.Fatalf("CheckStatus failed: %v", err)
	}
	if report.PollError == "" {
		t.Error("malformed payload must surface as a poll error")
	}
	mustStatus(t, f, models.ContentStatusGenerating)
}

func TestCheckStatusWithoutActiveTask(t *testing.T) {
	f := setup(t)

	report, err := f.coord.CheckStatus(context.Background(), f.content.ID)
	if err != nil {
		t.Fatalf("CheckStatus failed: %v", err)
	}
	if report.ContentStatus != models.ContentStatusDraft {
		t.Errorf("content status = %s, want draft", report.ContentStatus)
	}
	if report.Task != nil {
		t.Errorf("no task expected, got %+v", report.Task)
	}
}

func TestPublishLifecycle(t *testing.T) {
	f := setup(t)

	// draft -> publish must conflict
	if _, err := f.coord.Publish(context.Background(), f.content.ID); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict publishing a draft, got %v", err)
	}

	if _, err := f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKindStoryboard, nil); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	f.poller.result = studio.PollResult{
		Status: models.TaskStatusSucceeded,
		Result: json.RawMessage(`[{"type":"shot","text":"final"}]`),
	}
	if _, err := f.coord.CheckStatus(context.Background(), f.content.ID); err != nil {
		t.Fatalf("CheckStatus failed: %v", err)
	}

	content, err := f.coord.Publish(context.Background(), f.content.ID)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if content.Status != models.ContentStatusPublished {
		t.Errorf("content status = %s, want published", content.Status)
	}

	// published is terminal
	if _, err := f.coord.Publish(context.Background(), f.content.ID); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict republishing, got %v", err)
	}
	if _, err := f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKindStoryboard, nil); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict generating published content, got %v", err)
	}
}

func TestScheduleFromDraft(t *testing.T) {
	f := setup(t)

	content, err := f.coord.Schedule(context.Background(), f.content.ID, nil)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if content.Status != models.ContentStatusScheduled {
		t.Errorf("content status = %s, want scheduled", content.Status)
	}

	// scheduled content can still enter generation
	if _, err := f.coord.StartGeneration(context.Background(), f.content.ID, models.TaskKindStoryboard, nil); err != nil {
		t.Fatalf("dispatch from scheduled rejected: %v", err)
	}

	// but scheduling twice conflicts
	if _, err := f.coord.Schedule(context.Background(), f.content.ID, nil); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected conflict rescheduling, got %v", err)
	}
}
