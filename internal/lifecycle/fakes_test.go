package lifecycle

import (
	"context"
	"sort"
	"time"

	"github.com/hitoshi/jobtrail/internal/model"
)

// --- インメモリのフェイク ---

type fakeStore struct {
	apps map[string]*model.Application
	seq  int

	setStatusErr      error
	markFollowedUpErr error
	deleteErr         error
}

func newFakeStore() *fakeStore {
	return &fakeStore{apps: make(map[string]*model.Application)}
}

func (s *fakeStore) Create(ctx context.Context, in model.NewApplication) (*model.Application, error) {
	if in.Company == "" || in.Role == "" {
		return nil, model.NewValidationError("company", "必須項目です")
	}
	s.seq++
	status := in.Status
	if status == "" {
		status = model.StatusApplied
	}
	app := &model.Application{
		ID:              "app-" + string(rune('0'+s.seq)),
		Company:         in.Company,
		Role:            in.Role,
		Status:          status,
		StatusUpdatedAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		DateApplied:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		FollowupStatus:  model.FollowupPending,
	}
	stored := *app
	s.apps[app.ID] = &stored
	return app, nil
}

func (s *fakeStore) Get(ctx context.Context, id string) (*model.Application, error) {
	app, ok := s.apps[id]
	if !ok {
		return nil, model.NewApplicationNotFoundError(id)
	}
	copied := *app
	return &copied, nil
}

func (s *fakeStore) Update(ctx context.Context, id string, patch model.ApplicationPatch) (*model.Application, error) {
	app, ok := s.apps[id]
	if !ok {
		return nil, model.NewApplicationNotFoundError(id)
	}
	if patch.Notes != nil {
		app.Notes = patch.Notes
	}
	copied := *app
	return &copied, nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return &model.PersistenceError{Op: "delete application", Err: s.deleteErr}
	}
	if _, ok := s.apps[id]; !ok {
		return model.NewApplicationNotFoundError(id)
	}
	delete(s.apps, id)
	return nil
}

func (s *fakeStore) SetStatus(ctx context.Context, id string, status model.Status, at time.Time) error {
	if s.setStatusErr != nil {
		return &model.PersistenceError{Op: "update status", Err: s.setStatusErr}
	}
	app, ok := s.apps[id]
	if !ok {
		return model.NewApplicationNotFoundError(id)
	}
	app.Status = status
	app.StatusUpdatedAt = at
	return nil
}

func (s *fakeStore) MarkFollowedUp(ctx context.Context, id string, at time.Time) error {
	if s.markFollowedUpErr != nil {
		return &model.PersistenceError{Op: "mark followed up", Err: s.markFollowedUpErr}
	}
	app, ok := s.apps[id]
	if !ok {
		return model.NewApplicationNotFoundError(id)
	}
	app.FollowupStatus = model.FollowupDone
	t := at
	app.LastFollowedUpAt = &t
	return nil
}

type fakeStatusEvents struct {
	events    []*model.StatusEvent
	appendErr error
}

func (r *fakeStatusEvents) Append(ctx context.Context, event *model.StatusEvent) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	event.Seq = int64(len(r.events) + 1)
	r.events = append(r.events, event)
	return nil
}

func (r *fakeStatusEvents) ListByApplication(ctx context.Context, applicationID string) ([]*model.StatusEvent, error) {
	var out []*model.StatusEvent
	for _, ev := range r.events {
		if ev.ApplicationID == applicationID {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ChangedAt.Equal(out[j].ChangedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].ChangedAt.Before(out[j].ChangedAt)
	})
	return out, nil
}

type fakeFollowups struct {
	logs      []*model.FollowupLog
	appendErr error
}

func (r *fakeFollowups) Append(ctx context.Context, log *model.FollowupLog) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	log.Seq = int64(len(r.logs) + 1)
	r.logs = append(r.logs, log)
	return nil
}

func (r *fakeFollowups) ListByApplication(ctx context.Context, applicationID string) ([]*model.FollowupLog, error) {
	var out []*model.FollowupLog
	for _, l := range r.logs {
		if l.ApplicationID == applicationID {
			out = append(out, l)
		}
	}
	return out, nil
}

type recordedAudit struct {
	EventType     string
	ApplicationID string
	ActorID       string
	Payload       any
}

type fakeAudit struct {
	records []recordedAudit
	err     error
}

func (a *fakeAudit) Record(ctx context.Context, eventType string, applicationID *string, actorID string, payload any) error {
	if a.err != nil {
		return &model.AuditWriteError{EventType: eventType, Err: a.err}
	}
	rec := recordedAudit{EventType: eventType, ActorID: actorID, Payload: payload}
	if applicationID != nil {
		rec.ApplicationID = *applicationID
	}
	a.records = append(a.records, rec)
	return nil
}

func (a *fakeAudit) types() []string {
	out := make([]string, len(a.records))
	for i, r := range a.records {
		out[i] = r.EventType
	}
	return out
}

type fakeMetrics struct {
	created, deleted, followups int
	transitions                 []string
	failures                    map[string]int
}

func (m *fakeMetrics) ApplicationCreated() { m.created++ }
func (m *fakeMetrics) ApplicationDeleted() { m.deleted++ }
func (m *fakeMetrics) StatusTransition(from, to model.Status) {
	m.transitions = append(m.transitions, string(from)+"->"+string(to))
}
func (m *fakeMetrics) FollowupLogged() { m.followups++ }
func (m *fakeMetrics) SecondaryWriteFailed(step string) {
	if m.failures == nil {
		m.failures = make(map[string]int)
	}
	m.failures[step]++
}

// testEnv は1テスト分のエンジンとフェイク一式。
type testEnv struct {
	engine    *Engine
	store     *fakeStore
	events    *fakeStatusEvents
	followups *fakeFollowups
	audit     *fakeAudit
	metrics   *fakeMetrics
	clock     time.Time
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:     newFakeStore(),
		events:    &fakeStatusEvents{},
		followups: &fakeFollowups{},
		audit:     &fakeAudit{},
		metrics:   &fakeMetrics{},
		clock:     time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
	}
	env.engine = NewEngine(Deps{
		Store:        env.store,
		StatusEvents: env.events,
		Followups:    env.followups,
		Audit:        env.audit,
		Metrics:      env.metrics,
	})
	env.engine.now = func() time.Time { return env.clock }
	return env
}

func (env *testEnv) advance(d time.Duration) { env.clock = env.clock.Add(d) }

var testSession = &model.Session{ID: "sess-1", UserID: "user-1"}
