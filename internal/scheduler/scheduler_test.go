package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smis-school/smis/internal/pkg/metrics"
)

type fakeFees struct {
	overdue   int64
	days      int
	remindErr error
}

func (f *fakeFees) MarkOverdue(ctx context.Context) (int64, error) { return f.overdue, nil }

func (f *fakeFees) SendReminders(ctx context.Context, daysAhead int) (int, error) {
	f.days = daysAhead
	return 2, f.remindErr
}

type fakePruner struct{ cutoff time.Time }

func (p *fakePruner) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return 1, nil
}

func (p *fakePruner) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	p.cutoff = olderThan
	return 3, nil
}

func TestScheduler_AddAndRunNow(t *testing.T) {
	m := metrics.New(false)
	s := New(zerolog.Nop(), m)

	ran := 0
	require.NoError(t, s.Add(Job{Name: "tick", Spec: "@every 1h", Run: func(ctx context.Context) error {
		ran++
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}}))
	require.NoError(t, s.Add(Job{Name: "disabled", Spec: ""}))
	assert.Error(t, s.Add(Job{Name: "bad", Spec: "every tuesday"}))

	assert.ElementsMatch(t, []string{"tick"}, s.Jobs())
	require.NoError(t, s.RunNow(context.Background(), "tick"))
	assert.Equal(t, 1, ran)
	assert.Error(t, s.RunNow(context.Background(), "disabled"))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `smis_scheduler_job_runs_total{job="tick",success="true"} 1`)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(zerolog.Nop(), nil)
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestMaintenanceJobs(t *testing.T) {
	now := time.Date(2024, 6, 30, 2, 0, 0, 0, time.UTC)
	fees := &fakeFees{overdue: 4, remindErr: errors.New("smtp down")}
	tokens := &fakePruner{}
	activity := &fakePruner{}

	cfg := JobConfig{
		OverdueFeesSpec:       "0 1 * * *",
		FeeReminderSpec:       "0 8 * * 1",
		FeeReminderDaysAhead:  7,
		TokenCleanupSpec:      "0 3 * * *",
		ActivityRetentionSpec: "0 4 * * *",
		ActivityRetentionDays: 90,
	}
	jobs := MaintenanceJobs(cfg, fees, tokens, activity, zerolog.Nop(), func() time.Time { return now })
	require.Len(t, jobs, 4)

	byName := make(map[string]Job)
	for _, j := range jobs {
		byName[j.Name] = j
	}
	ctx := context.Background()

	assert.NoError(t, byName[JobOverdueFees].Run(ctx))
	assert.EqualError(t, byName[JobFeeReminders].Run(ctx), "smtp down")
	assert.Equal(t, 7, fees.days)

	assert.NoError(t, byName[JobTokenCleanup].Run(ctx))
	assert.Equal(t, now, tokens.cutoff)

	assert.NoError(t, byName[JobActivityRetention].Run(ctx))
	assert.Equal(t, now.AddDate(0, 0, -90), activity.cutoff)

	cfg.ActivityRetentionDays = 0
	assert.Len(t, MaintenanceJobs(cfg, fees, tokens, activity, zerolog.Nop(), nil), 3)
}
