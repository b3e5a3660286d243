package participant_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questtrack/questtrack/core"
	"github.com/questtrack/questtrack/core/participant"
	"github.com/questtrack/questtrack/core/project"
	inmemdb "github.com/questtrack/questtrack/storage/database/inmem"
)

type testEnv struct {
	svc     *participant.Service
	tx      core.Transactor
	repo    participant.Repository
	prjRepo project.Repository
}

func newTestEnv(t *testing.T, today time.Time) testEnv {
	t.Helper()

	orig := participant.NowFunc
	participant.NowFunc = func() time.Time { return today }
	t.Cleanup(func() { participant.NowFunc = orig })

	db := inmemdb.Open()
	tx := inmemdb.NewTransactor(db)
	repo := inmemdb.NewParticipantRepository(db)
	prjRepo := inmemdb.NewProjectRepository(db)
	return testEnv{
		svc:     participant.NewService(tx, repo, prjRepo, time.UTC),
		tx:      tx,
		repo:    repo,
		prjRepo: prjRepo,
	}
}

func (env testEnv) createProject(t *testing.T, totalQuestions int, end time.Time) project.Project {
	t.Helper()
	prj, err := env.prjRepo.CreateProject(context.Background(), project.Project{
		Name:              "Onboarding",
		Description:       "first week",
		TotalParticipants: 10,
		TotalQuestions:    totalQuestions,
		DateStart:         end.AddDate(0, -1, 0),
		DateEnd:           end,
		Image:             "/images/x.png",
	})
	require.NoError(t, err)
	return prj
}

func (env testEnv) upload(t *testing.T, projectID int, names ...string) {
	t.Helper()
	entries := make([]participant.RosterEntry, 0, len(names))
	for i, name := range names {
		entries = append(entries, participant.RosterEntry{
			NationalID: participant.SheetValue(string(rune('1'+i)) + "-9"),
			Name:       participant.SheetValue(name),
		})
	}
	n, err := env.svc.UploadRoster(context.Background(), participant.Roster{ProjectID: projectID, Entries: entries})
	require.NoError(t, err)
	require.Equal(t, len(names), n)
}

func counts(correct, incorrect int) (*int, *int) {
	return &correct, &incorrect
}

func update(projectID, participantID, correct, incorrect int) participant.CountsUpdate {
	c, i := counts(correct, incorrect)
	return participant.CountsUpdate{ProjectID: projectID, ParticipantID: participantID, CorrectAnswers: c, IncorrectAnswers: i}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestService_UploadRoster(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, date(2024, 1, 10))
	prj := env.createProject(t, 30, date(2024, 1, 31))

	env.upload(t, prj.ID, "Ana", "Luis")

	participants, err := env.repo.QueryParticipantsByProject(ctx, prj.ID)
	require.NoError(t, err)
	require.Len(t, participants, 2)
	for _, p := range participants {
		assert.Equal(t, 0, p.CorrectAnswers)
		assert.Equal(t, 0, p.IncorrectAnswers)
		assert.Equal(t, 30, p.Remaining)
		assert.Equal(t, participant.StatusInProgress, p.Status)
	}

	t.Run("UnknownProject", func(t *testing.T) {
		_, err := env.svc.UploadRoster(ctx, participant.Roster{
			ProjectID: 999,
			Entries:   []participant.RosterEntry{{NationalID: "1-9", Name: "Eva"}},
		})
		assert.Equal(t, project.ErrNotFound, errors.Cause(err))
	})

	t.Run("TotalQuestionsMismatch", func(t *testing.T) {
		total := 29
		_, err := env.svc.UploadRoster(ctx, participant.Roster{
			ProjectID:      prj.ID,
			TotalQuestions: &total,
			Entries:        []participant.RosterEntry{{NationalID: "3-9", Name: "Eva"}},
		})
		require.Error(t, err)
		vErr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok)
		assert.Equal(t, "totalQuestions", vErr.Fields[0].Field)

		count, err := env.svc.CountByProject(ctx, prj.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("PastDeadline", func(t *testing.T) {
		late := env.createProject(t, 5, date(2024, 1, 1))
		env.upload(t, late.ID, "Eva")
		participants, err := env.repo.QueryParticipantsByProject(ctx, late.ID)
		require.NoError(t, err)
		assert.Equal(t, participant.StatusDelayed, participants[0].Status)
	})
}

func TestService_QueryByProject(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, date(2024, 2, 15))
	prj := env.createProject(t, 30, date(2024, 1, 31))

	t.Run("UnknownProject", func(t *testing.T) {
		_, err := env.svc.QueryByProject(ctx, 999)
		assert.Equal(t, project.ErrNotFound, errors.Cause(err))
	})

	t.Run("NoParticipants", func(t *testing.T) {
		_, err := env.svc.QueryByProject(ctx, prj.ID)
		assert.Equal(t, participant.ErrNoParticipants, err)
	})

	env.upload(t, prj.ID, "Ana", "Luis")
	// counters changed behind the service's back: the status stored is stale
	require.NoError(t, env.repo.UpdateParticipantCounts(ctx, participant.Participant{ID: 1, ProjectID: prj.ID, CorrectAnswers: 30}))

	participants, err := env.svc.QueryByProject(ctx, prj.ID)
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, participant.StatusCompleted, participants[0].Status)
	assert.Equal(t, participant.StatusDelayed, participants[1].Status)

	summary, err := env.svc.StatusSummary(ctx, prj.ID)
	require.NoError(t, err)
	assert.Equal(t, participant.StatusCounts{Completed: 1, Delayed: 1}, summary)
}

func TestService_StatusSummary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, date(2024, 1, 10))
	prj := env.createProject(t, 30, date(2024, 1, 31))

	summary, err := env.svc.StatusSummary(ctx, prj.ID)
	require.NoError(t, err)
	assert.Equal(t, participant.StatusCounts{}, summary)

	_, err = env.svc.StatusSummary(ctx, 999)
	assert.Equal(t, project.ErrNotFound, errors.Cause(err))
}

func TestService_UpdateCounts(t *testing.T) {
	ctx := context.Background()

	t.Run("BatchRecomputesStatuses", func(t *testing.T) {
		env := newTestEnv(t, date(2024, 2, 15))
		prj := env.createProject(t, 30, date(2024, 1, 31))
		env.upload(t, prj.ID, "Ana", "Luis")

		recomputed, err := env.svc.UpdateCounts(ctx, []participant.CountsUpdate{
			update(prj.ID, 1, 30, 0),
			update(prj.ID, 2, 5, 3),
		})
		require.NoError(t, err)
		assert.Equal(t, map[int]participant.StatusCounts{prj.ID: {Completed: 1, Delayed: 1}}, recomputed)

		participants, err := env.repo.QueryParticipantsByProject(ctx, prj.ID)
		require.NoError(t, err)
		assert.Equal(t, participant.StatusCompleted, participants[0].Status)
		assert.Equal(t, 0, participants[0].Remaining)
		assert.Equal(t, participant.StatusDelayed, participants[1].Status)
		assert.Equal(t, 22, participants[1].Remaining)
		assert.Equal(t, 3, participants[1].IncorrectAnswers)

		summary, err := env.svc.StatusSummary(ctx, prj.ID)
		require.NoError(t, err)
		assert.Equal(t, participant.StatusCounts{Completed: 1, Delayed: 1, InProgress: 0}, summary)
	})

	t.Run("SeveralProjects", func(t *testing.T) {
		env := newTestEnv(t, date(2024, 1, 10))
		first := env.createProject(t, 10, date(2024, 1, 31))
		second := env.createProject(t, 5, date(2024, 1, 5))
		env.upload(t, first.ID, "Ana")
		env.upload(t, second.ID, "Luis", "Eva")

		recomputed, err := env.svc.UpdateCounts(ctx, []participant.CountsUpdate{
			update(first.ID, 1, 2, 0),
			update(second.ID, 3, 5, 0),
		})
		require.NoError(t, err)
		assert.Equal(t, map[int]participant.StatusCounts{
			first.ID:  {InProgress: 1},
			second.ID: {Completed: 1, Delayed: 1},
		}, recomputed)
	})

	t.Run("UnknownParticipantRollsBack", func(t *testing.T) {
		env := newTestEnv(t, date(2024, 2, 15))
		prj := env.createProject(t, 30, date(2024, 1, 31))
		env.upload(t, prj.ID, "Ana")

		_, err := env.svc.UpdateCounts(ctx, []participant.CountsUpdate{
			update(prj.ID, 1, 30, 0),
			update(prj.ID, 42, 1, 0),
		})
		assert.Equal(t, participant.ErrNotFound, errors.Cause(err))

		participants, err := env.repo.QueryParticipantsByProject(ctx, prj.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, participants[0].CorrectAnswers)
		assert.Equal(t, 30, participants[0].Remaining)
	})

	t.Run("ParticipantOfAnotherProject", func(t *testing.T) {
		env := newTestEnv(t, date(2024, 2, 15))
		first := env.createProject(t, 30, date(2024, 1, 31))
		second := env.createProject(t, 30, date(2024, 1, 31))
		env.upload(t, first.ID, "Ana")

		_, err := env.svc.UpdateCounts(ctx, []participant.CountsUpdate{update(second.ID, 1, 1, 0)})
		assert.Equal(t, participant.ErrNotFound, errors.Cause(err))
	})

	t.Run("UnknownProject", func(t *testing.T) {
		env := newTestEnv(t, date(2024, 2, 15))
		_, err := env.svc.UpdateCounts(ctx, []participant.CountsUpdate{update(7, 1, 1, 0)})
		assert.Equal(t, project.ErrNotFound, errors.Cause(err))
	})

	t.Run("InconsistentCounts", func(t *testing.T) {
		env := newTestEnv(t, date(2024, 2, 15))
		prj := env.createProject(t, 10, date(2024, 1, 31))
		env.upload(t, prj.ID, "Ana", "Luis")

		_, err := env.svc.UpdateCounts(ctx, []participant.CountsUpdate{
			update(prj.ID, 1, 4, 0),
			update(prj.ID, 2, 8, 3),
		})
		require.Error(t, err)
		vErr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok)
		assert.Equal(t, "respuestasAcertadas", vErr.Fields[0].Field)

		participants, err := env.repo.QueryParticipantsByProject(ctx, prj.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, participants[0].CorrectAnswers)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		env := newTestEnv(t, date(2024, 2, 15))
		_, err := env.svc.UpdateCounts(ctx, nil)
		_, ok := err.(*core.ValidationError)
		assert.True(t, ok)
	})
}

// failingStatusRepo fails when persisting statuses, after the counters were written.
type failingStatusRepo struct {
	participant.Repository
}

var errStatusWrite = errors.New("status write failed")

func (repo failingStatusRepo) SetParticipantsStatus(context.Context, int, participant.Status, []int, ...core.DBExecutor) error {
	return errStatusWrite
}

func TestService_UpdateCounts_statusFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	orig := participant.NowFunc
	participant.NowFunc = func() time.Time { return date(2024, 2, 15) }
	defer func() { participant.NowFunc = orig }()

	db := inmemdb.Open()
	repo := inmemdb.NewParticipantRepository(db)
	prjRepo := inmemdb.NewProjectRepository(db)
	svc := participant.NewService(inmemdb.NewTransactor(db), failingStatusRepo{repo}, prjRepo, nil)

	prj, err := prjRepo.CreateProject(ctx, project.Project{Name: "P", TotalQuestions: 30, DateEnd: date(2024, 1, 31)})
	require.NoError(t, err)
	require.NoError(t, repo.CreateParticipants(ctx, []participant.Participant{
		{NationalID: "1-9", Name: "Ana", ProjectID: prj.ID, Remaining: 30, Status: participant.StatusInProgress},
	}))

	_, err = svc.UpdateCounts(ctx, []participant.CountsUpdate{update(prj.ID, 1, 30, 0)})
	assert.Equal(t, errStatusWrite, errors.Cause(err))

	participants, err := repo.QueryParticipantsByProject(ctx, prj.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, participants[0].CorrectAnswers)
	assert.Equal(t, participant.StatusInProgress, participants[0].Status)
}

// lockRecorder records the projects locked through it.
type lockRecorder struct {
	project.Repository
	locked []int
}

func (repo *lockRecorder) LockProjectByID(ctx context.Context, id int, exec ...core.DBExecutor) (project.Project, error) {
	repo.locked = append(repo.locked, id)
	return repo.Repository.LockProjectByID(ctx, id, exec...)
}

func TestService_locksProjects(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, date(2024, 1, 10))
	first := env.createProject(t, 10, date(2024, 1, 31))
	second := env.createProject(t, 10, date(2024, 1, 31))
	env.upload(t, first.ID, "Ana")
	env.upload(t, second.ID, "Luis", "Eva")

	locks := &lockRecorder{Repository: env.prjRepo}
	svc := participant.NewService(env.tx, env.repo, locks, time.UTC)

	_, err := svc.UpdateCounts(ctx, []participant.CountsUpdate{
		update(second.ID, 3, 1, 0),
		update(first.ID, 1, 1, 0),
		update(second.ID, 2, 1, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{first.ID, second.ID}, locks.locked)

	locks.locked = nil
	_, err = svc.UploadRoster(ctx, participant.Roster{
		ProjectID: second.ID,
		Entries:   []participant.RosterEntry{{NationalID: "4-9", Name: "Sol"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{second.ID}, locks.locked)
}
