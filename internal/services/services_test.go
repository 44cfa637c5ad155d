package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/objectstore"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/purge"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store/memory"
)

// --- Fakes ---

type fakeRunner struct {
	calls []string
	err   error
	locks int
	mu    sync.Mutex
}

func (f *fakeRunner) LockRobot(string) func() {
	f.mu.Lock()
	f.locks++
	return f.mu.Unlock
}

func (f *fakeRunner) RunRobot(_ context.Context, r *model.Robot, now time.Time) (purge.RunResult, error) {
	f.calls = append(f.calls, r.ID)
	if f.err != nil {
		return purge.RunResult{}, f.err
	}
	return purge.RunResult{RobotID: r.ID, Evaluated: true}, nil
}

type fakeMailer struct {
	to     string
	report *model.Report
	err    error
}

func (f *fakeMailer) SendReport(_ context.Context, to string, r *model.Report) error {
	f.to, f.report = to, r
	return f.err
}

func newRobot() *model.Robot {
	return &model.Robot{
		Name: "acme",
		Credential: model.Credential{
			PlatformEmail:     "bot@acme.test",
			PlatformAPIKey:    "key",
			CloudSessionToken: "session",
		},
		Policy: model.Policy{Active: true, ScheduleDays: 1, LastActiveDays: 90, CheckDoubleEmail: true},
	}
}

func setup(t *testing.T) (store.Store, *objectstore.Memory, *fakeRunner, *RobotService) {
	t.Helper()
	st := memory.New()
	blobs := objectstore.NewMemory()
	runner := &fakeRunner{}
	return st, blobs, runner, NewRobotService(st, blobs, runner, zerolog.Nop())
}

func TestCreateRobot_DefaultsAndMirrors(t *testing.T) {
	_, blobs, _, svc := setup(t)
	ctx := context.Background()

	in := newRobot()
	stale := time.Now().Add(-time.Hour)
	in.Policy.LastUpdated = &stale
	out, err := svc.CreateRobot(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, model.PlatformCloud, out.Credential.PlatformType)
	assert.Nil(t, out.Policy.LastUpdated)
	assert.False(t, out.CreationTime.IsZero())

	data, err := blobs.GetRobotConfig(ctx, out.ID)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: acme")
}

func TestCreateRobot_Invalid(t *testing.T) {
	_, _, _, svc := setup(t)
	r := newRobot()
	r.Name = ""
	_, err := svc.CreateRobot(context.Background(), r)
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestPatchRobot(t *testing.T) {
	_, blobs, _, svc := setup(t)
	ctx := context.Background()
	r, err := svc.CreateRobot(ctx, newRobot())
	require.NoError(t, err)

	days := 7
	active := false
	out, err := svc.PatchRobot(ctx, r.ID, model.RobotPatch{ScheduleDays: &days, Active: &active})
	require.NoError(t, err)
	assert.Equal(t, 7, out.Policy.ScheduleDays)
	assert.False(t, out.Policy.Active)
	assert.Equal(t, "acme", out.Name)

	data, err := blobs.GetRobotConfig(ctx, r.ID)
	require.NoError(t, err)
	cfg, err := objectstore.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Policy.ScheduleDays)

	bad := "MAINFRAME"
	_, err = svc.PatchRobot(ctx, r.ID, model.RobotPatch{PlatformType: &bad})
	require.ErrorIs(t, err, model.ErrValidation)

	neg := -1
	_, err = svc.PatchRobot(ctx, r.ID, model.RobotPatch{LastActiveDays: &neg})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.PatchRobot(ctx, "missing", model.RobotPatch{ScheduleDays: &days})
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteRobot_CascadesRecordsKeepsLog(t *testing.T) {
	st, blobs, _, svc := setup(t)
	ctx := context.Background()
	r, err := svc.CreateRobot(ctx, newRobot())
	require.NoError(t, err)
	other, err := svc.CreateRobot(ctx, newRobot())
	require.NoError(t, err)

	now := time.Now().UTC()
	for _, id := range []string{r.ID, other.ID} {
		_, err := st.PurgeRecords().Upsert(ctx, &model.PurgeRecord{
			RobotID: id,
			Subject: model.PurgeSubject{UserID: "u1"},
			Reasons: model.NewReasonSet(model.ReasonLastActive),
		})
		require.NoError(t, err)
	}
	require.NoError(t, st.PurgeLog().Append(ctx, &model.PurgeLogEntry{RobotID: r.ID, RemovedAt: now}))

	require.NoError(t, svc.DeleteRobot(ctx, r.ID))

	_, err = svc.GetRobot(ctx, r.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
	recs, err := st.PurgeRecords().List(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, recs)
	recs, err = st.PurgeRecords().List(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 1, "other robot's records survive")
	logs, err := st.PurgeLog().List(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	_, err = blobs.GetRobotConfig(ctx, r.ID)
	require.ErrorIs(t, err, model.ErrNotFound)

	require.ErrorIs(t, svc.DeleteRobot(ctx, r.ID), model.ErrNotFound)
}

func TestDeleteRobot_TakesRobotLock(t *testing.T) {
	_, _, runner, svc := setup(t)
	ctx := context.Background()
	r, err := svc.CreateRobot(ctx, newRobot())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRobot(ctx, r.ID))
	assert.Equal(t, 1, runner.locks)
}

func TestRobotConfig_RebuildsMissingBlob(t *testing.T) {
	_, blobs, _, svc := setup(t)
	ctx := context.Background()
	r, err := svc.CreateRobot(ctx, newRobot())
	require.NoError(t, err)
	require.NoError(t, blobs.DeleteRobotConfig(ctx, r.ID))

	data, err := svc.RobotConfig(ctx, r.ID)
	require.NoError(t, err)
	assert.Contains(t, string(data), r.ID)
	_, err = blobs.GetRobotConfig(ctx, r.ID)
	require.NoError(t, err, "blob is restored")

	_, err = svc.RobotConfig(ctx, "missing")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestRunRobotNow(t *testing.T) {
	_, _, runner, svc := setup(t)
	ctx := context.Background()
	r, err := svc.CreateRobot(ctx, newRobot())
	require.NoError(t, err)

	res, err := svc.RunRobotNow(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, res.RobotID)
	assert.Equal(t, []string{r.ID}, runner.calls)

	active := false
	_, err = svc.PatchRobot(ctx, r.ID, model.RobotPatch{Active: &active})
	require.NoError(t, err)
	_, err = svc.RunRobotNow(ctx, r.ID)
	require.ErrorIs(t, err, model.ErrRobotInactive)
	assert.Len(t, runner.calls, 1)

	_, err = svc.RunRobotNow(ctx, "missing")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestRunRobotNow_RunnerError(t *testing.T) {
	_, _, runner, svc := setup(t)
	ctx := context.Background()
	r, err := svc.CreateRobot(ctx, newRobot())
	require.NoError(t, err)
	runner.err = errors.New("roster down")
	_, err = svc.RunRobotNow(ctx, r.ID)
	require.EqualError(t, err, "roster down")
}

func TestReportService(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	mailer := &fakeMailer{}
	svc := NewReportService(st, mailer)

	empty, err := svc.BuildReport(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, empty.Queued)
	assert.NotNil(t, empty.Removed)

	for _, rid := range []string{"r1", "r2"} {
		_, err := st.PurgeRecords().Upsert(ctx, &model.PurgeRecord{RobotID: rid, Subject: model.PurgeSubject{UserID: "u"}})
		require.NoError(t, err)
		require.NoError(t, st.PurgeLog().Append(ctx, &model.PurgeLogEntry{RobotID: rid, RemovedAt: time.Now()}))
	}

	all, err := svc.BuildReport(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all.Queued, 2)
	assert.Len(t, all.Removed, 2)

	one, err := svc.BuildReport(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, one.Queued, 1)
	assert.Equal(t, "r1", one.Queued[0].RobotID)
	require.Len(t, one.Removed, 1)

	sent, err := svc.EmailReport(ctx, "r2", "ops@acme.test")
	require.NoError(t, err)
	assert.Equal(t, "ops@acme.test", mailer.to)
	assert.Same(t, sent, mailer.report)

	mailer.err = errors.New("smtp down")
	_, err = svc.EmailReport(ctx, "", "ops@acme.test")
	require.Error(t, err)
}

// gatedRoster blocks the first fetch until release is closed.
type gatedRoster struct {
	users   []model.DirectoryUser
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedRoster(users ...model.DirectoryUser) *gatedRoster {
	return &gatedRoster{users: users, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedRoster) FetchUsers(context.Context, model.Credential) ([]model.DirectoryUser, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.users, nil
}

type nopAdmin struct{}

func (nopAdmin) RemoveUser(context.Context, model.Credential, string) error { return nil }

type nopNotifier struct{}

func (nopNotifier) SendWarning(context.Context, *model.Robot, *model.PurgeRecord) error { return nil }

// countingStore counts Robots().Get calls.
type countingStore struct {
	store.Store
	gets atomic.Int32
}

func (c *countingStore) Robots() store.Robots {
	return &countingRobots{Robots: c.Store.Robots(), gets: &c.gets}
}

type countingRobots struct {
	store.Robots
	gets *atomic.Int32
}

func (c *countingRobots) Get(ctx context.Context, robotID string) (*model.Robot, error) {
	c.gets.Add(1)
	return c.Robots.Get(ctx, robotID)
}

func deactivatedUser(id string) model.DirectoryUser {
	return model.DirectoryUser{ID: id, DisplayName: "User " + id, Email: id + "@acme.test", Created: time.Now().Add(-24 * time.Hour)}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for robot pass")
	}
}

func TestDeleteRobot_WaitsForRunningPass(t *testing.T) {
	st := memory.New()
	roster := newGatedRoster(deactivatedUser("u1"))
	orch := purge.NewOrchestrator(st, roster, nopAdmin{}, nopNotifier{}, purge.Config{}, zerolog.Nop())
	svc := NewRobotService(st, objectstore.NewMemory(), orch, zerolog.Nop())
	ctx := context.Background()

	in := newRobot()
	in.Policy.CheckActiveStatus = true
	r, err := svc.CreateRobot(ctx, in)
	require.NoError(t, err)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_, _ = svc.RunRobotNow(ctx, r.ID)
	}()
	waitFor(t, roster.entered)

	delErr := make(chan error, 1)
	go func() { delErr <- svc.DeleteRobot(ctx, r.ID) }()
	select {
	case err := <-delErr:
		t.Fatalf("delete finished while a pass was running: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(roster.release)
	waitFor(t, runDone)
	select {
	case err := <-delErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("delete never finished")
	}

	recs, err := st.PurgeRecords().List(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, recs, "no purge record may outlive its robot")
	_, err = svc.GetRobot(ctx, r.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestRunRobotNow_BehindScheduledPassSeesFreshStamp(t *testing.T) {
	st := &countingStore{Store: memory.New()}
	roster := newGatedRoster(deactivatedUser("u1"))
	orch := purge.NewOrchestrator(st, roster, nopAdmin{}, nopNotifier{}, purge.Config{}, zerolog.Nop())
	svc := NewRobotService(st, objectstore.NewMemory(), orch, zerolog.Nop())
	ctx := context.Background()

	in := newRobot()
	in.Policy.CheckActiveStatus = true
	r, err := svc.CreateRobot(ctx, in)
	require.NoError(t, err)
	now := time.Now().UTC()
	svc.now = func() time.Time { return now }

	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		_ = orch.Tick(ctx, now)
	}()
	waitFor(t, roster.entered)

	// The scheduled pass has reloaded the robot; the on-demand run reads it
	// next, before the pass stamps lastUpdated.
	before := st.gets.Load()
	type outcome struct {
		res purge.RunResult
		err error
	}
	runOut := make(chan outcome, 1)
	go func() {
		res, err := svc.RunRobotNow(ctx, r.ID)
		runOut <- outcome{res, err}
	}()
	deadline := time.Now().Add(5 * time.Second)
	for st.gets.Load() == before {
		if time.Now().After(deadline) {
			t.Fatalf("on-demand run never read the robot")
		}
		time.Sleep(time.Millisecond)
	}

	close(roster.release)
	waitFor(t, tickDone)
	var got outcome
	select {
	case got = <-runOut:
	case <-time.After(5 * time.Second):
		t.Fatalf("on-demand run never finished")
	}
	require.NoError(t, got.err)
	assert.False(t, got.res.Evaluated, "robot was stamped by the scheduled pass and is not due")
	assert.Zero(t, got.res.Inserted)
	assert.Zero(t, got.res.Warned)

	stored, err := st.Robots().Get(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Policy.LastUpdated)
	assert.True(t, stored.Policy.LastUpdated.Equal(now))
	recs, err := st.PurgeRecords().List(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
