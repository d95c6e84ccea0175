package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/moglich/opsdash/internal/models"
	"github.com/moglich/opsdash/internal/recall"
)

type memRecordings struct {
	mu   sync.Mutex
	rows map[string]models.Recording
	err  error
}

func newMemRecordings() *memRecordings {
	return &memRecordings{rows: make(map[string]models.Recording)}
}

func (m *memRecordings) InsertIfAbsent(_ context.Context, rec *models.Recording) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.rows[rec.RecallBotID]; ok {
		return false, nil
	}
	m.rows[rec.RecallBotID] = *rec
	return true, nil
}

func (m *memRecordings) UpdateTranscript(_ context.Context, id string, lines []models.TranscriptLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.rows[id]
	rec.Transcript = lines
	m.rows[id] = rec
	return nil
}

func (m *memRecordings) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok
}

func (m *memRecordings) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memBots struct {
	mu      sync.Mutex
	rows    map[string]*models.Bot
	checked map[string]time.Time
	recs    *memRecordings
	now     time.Time
}

func newMemBots(recs *memRecordings, bots ...models.Bot) *memBots {
	m := &memBots{
		rows:    make(map[string]*models.Bot),
		checked: make(map[string]time.Time),
		recs:    recs,
		now:     time.Date(2026, 2, 24, 12, 0, 0, 0, time.UTC),
	}
	for i := range bots {
		b := bots[i]
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = m.now
		}
		m.rows[b.RecallBotID] = &b
	}
	return m
}

func (m *memBots) GetByRecallID(_ context.Context, id string) (*models.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *memBots) UpdateStatus(_ context.Context, id, status string) (*models.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	b.Status = status
	b.UpdatedAt = m.now
	cp := *b
	return &cp, nil
}

func (m *memBots) ListDoneWithoutRecording(_ context.Context, since time.Time, limit int) ([]models.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Bot
	for _, b := range m.rows {
		if b.Status == models.BotStatusDone && !m.recs.has(b.RecallBotID) && !b.UpdatedAt.Before(since) {
			out = append(out, *b)
		}
	}
	// Same order as the SQL: sync_checked_at NULLS FIRST, updated_at, recall_bot_id.
	sort.Slice(out, func(i, j int) bool {
		ci, cj := m.checked[out[i].RecallBotID], m.checked[out[j].RecallBotID]
		if !ci.Equal(cj) {
			return ci.IsZero() || (!cj.IsZero() && ci.Before(cj))
		}
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].RecallBotID < out[j].RecallBotID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memBots) MarkSyncChecked(_ context.Context, ids []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.checked[id] = at
	}
	return nil
}

func (m *memBots) status(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].Status
}

type stubProvider struct {
	mu            sync.Mutex
	bots          map[string]*recall.Bot
	errs          map[string]error
	transcript    []recall.TranscriptEntry
	transcriptErr error
	calls         int
}

func (p *stubProvider) GetBot(_ context.Context, id string) (*recall.Bot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if err := p.errs[id]; err != nil {
		return nil, err
	}
	b, ok := p.bots[id]
	if !ok {
		return nil, &recall.APIError{StatusCode: 404, Body: "not found"}
	}
	return b, nil
}

func (p *stubProvider) GetTranscript(context.Context, string) ([]recall.TranscriptEntry, error) {
	return p.transcript, p.transcriptErr
}

type memWatermark struct {
	t   time.Time
	set int
}

func (w *memWatermark) Get(context.Context) (time.Time, error) { return w.t, nil }

func (w *memWatermark) Set(_ context.Context, t time.Time) error {
	w.t = t
	w.set++
	return nil
}

type recordingJobs struct {
	mu        sync.Mutex
	reconcile []string
	archive   []string
}

func (j *recordingJobs) EnqueueBotReconcile(_ context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.reconcile = append(j.reconcile, id)
	return nil
}

func (j *recordingJobs) EnqueueRecordingArchive(_ context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.archive = append(j.archive, id)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishBotStatus(_ context.Context, host, id, status string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, host+"/"+id+"/"+status)
	return nil
}

var errBoom = errors.New("boom")

// providerBot returns a provider payload whose first recording has the given status code.
func providerBot(id, code string) *recall.Bot {
	rec := recall.Recording{
		StartedAt:   "2026-02-24T10:00:00Z",
		CompletedAt: "2026-02-24T10:01:35Z",
		Status:      recall.Status{Code: code},
	}
	rec.MediaShortcuts.VideoMixed = &recall.MediaShortcut{}
	rec.MediaShortcuts.VideoMixed.Data.DownloadURL = "https://cdn.example/" + id + ".mp4"
	return &recall.Bot{
		ID:            id,
		StatusChanges: []recall.StatusChange{{Code: "joining_call"}, {Code: "done"}},
		Recordings:    []recall.Recording{rec},
	}
}

func doneBotRow(id, host string) models.Bot {
	return models.Bot{RecallBotID: id, Host: host, MeetingURL: "https://meet.google.com/" + id, MeetingTitle: "Sync " + id, Status: models.BotStatusDone}
}
