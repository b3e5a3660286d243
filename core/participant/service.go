package participant

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/questtrack/questtrack/core"
	"github.com/questtrack/questtrack/core/project"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound       = errors.New("participant not found")
	ErrNoParticipants = errors.New("no participants found for this project")
	errInvalidBody    = errors.New("invalid participant data")
	errEmptyBatch     = errors.New("no participants to update")
)

type (
	Repository interface {
		CreateParticipants(ctx context.Context, participants []Participant, exec ...core.DBExecutor) error
		QueryParticipantsByProject(ctx context.Context, projectID int, exec ...core.DBExecutor) ([]Participant, error)
		CountParticipantsByProject(ctx context.Context, projectID int, exec ...core.DBExecutor) (int, error)
		// UpdateParticipantCounts overwrites the counters of the participant identified by (ProjectID, ID).
		// Returns ErrNotFound when no such participant exists.
		UpdateParticipantCounts(ctx context.Context, p Participant, exec ...core.DBExecutor) error
		SetParticipantsStatus(ctx context.Context, projectID int, status Status, ids []int, exec ...core.DBExecutor) error
	}

	Service struct {
		tx      core.Transactor
		repo    Repository
		prjRepo project.Repository
		loc     *time.Location
	}
)

func NewService(tx core.Transactor, repo Repository, prjRepo project.Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{tx: tx, repo: repo, prjRepo: prjRepo, loc: loc}
}

func (svc *Service) today() time.Time {
	return core.Today(NowFunc(), svc.loc)
}

// UploadRoster enrolls the roster entries in their project, with no answers yet.
// `r` must have been validated.
func (svc *Service) UploadRoster(ctx context.Context, r Roster) (int, error) {
	today := svc.today()
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		prj, err := svc.prjRepo.LockProjectByID(ctx, r.ProjectID, exec)
		if err != nil {
			return errors.Wrap(err, "finding project")
		}
		if r.TotalQuestions != nil && *r.TotalQuestions != prj.TotalQuestions {
			return core.NewFieldError(
				"totalQuestions",
				fmt.Sprintf("totalQuestions does not match the project's total questions (%d)", prj.TotalQuestions),
			)
		}

		status := DeriveStatus(0, prj.TotalQuestions, prj.DateEnd, today)
		participants := make([]Participant, 0, len(r.Entries))
		for _, entry := range r.Entries {
			participants = append(participants, Participant{
				NationalID: string(entry.NationalID),
				Name:       string(entry.Name),
				Remaining:  prj.TotalQuestions,
				ProjectID:  prj.ID,
				Status:     status,
			})
		}
		return errors.Wrap(svc.repo.CreateParticipants(ctx, participants, exec), "inserting participants")
	})
	if err != nil {
		return 0, err
	}
	return len(r.Entries), nil
}

// QueryByProject returns the participants of a project with their status derived as of today.
func (svc *Service) QueryByProject(ctx context.Context, projectID int) ([]Participant, error) {
	prj, err := svc.prjRepo.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "finding project")
	}
	participants, err := svc.repo.QueryParticipantsByProject(ctx, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "querying participants")
	}
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}

	today := svc.today()
	for i := range participants {
		participants[i].Status = DeriveStatus(participants[i].CorrectAnswers, prj.TotalQuestions, prj.DateEnd, today)
	}
	return participants, nil
}

func (svc *Service) CountByProject(ctx context.Context, projectID int) (int, error) {
	return svc.repo.CountParticipantsByProject(ctx, projectID)
}

// StatusSummary counts the participants of a project per status, derived as of today.
func (svc *Service) StatusSummary(ctx context.Context, projectID int) (StatusCounts, error) {
	prj, err := svc.prjRepo.GetProjectByID(ctx, projectID)
	if err != nil {
		return StatusCounts{}, errors.Wrap(err, "finding project")
	}
	participants, err := svc.repo.QueryParticipantsByProject(ctx, projectID)
	if err != nil {
		return StatusCounts{}, errors.Wrap(err, "querying participants")
	}

	var counts StatusCounts
	today := svc.today()
	for _, p := range participants {
		counts.Add(DeriveStatus(p.CorrectAnswers, prj.TotalQuestions, prj.DateEnd, today))
	}
	return counts, nil
}

// UpdateCounts applies a batch of counter updates, then recomputes the status of every participant
// of every project touched by the batch. Everything happens in one transaction: either the whole
// batch is applied or nothing is.
// Every update must have been validated. Returns the recomputed status counts per project.
func (svc *Service) UpdateCounts(ctx context.Context, updates []CountsUpdate) (map[int]StatusCounts, error) {
	if len(updates) == 0 {
		return nil, core.NewValidationError(errEmptyBatch)
	}

	today := svc.today()
	recomputed := make(map[int]StatusCounts)
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		projects, touched, err := svc.lockProjects(ctx, updates, exec)
		if err != nil {
			return err
		}

		for _, u := range updates {
			prj := projects[u.ProjectID]
			correct, incorrect := *u.CorrectAnswers, *u.IncorrectAnswers
			if correct+incorrect > prj.TotalQuestions {
				msg := fmt.Sprintf(
					"respuestasAcertadas + respuestasErroneas cannot exceed the project's total questions (%d)",
					prj.TotalQuestions,
				)
				return core.NewFieldError("respuestasAcertadas", msg)
			}

			p := Participant{
				ID:               u.ParticipantID,
				ProjectID:        u.ProjectID,
				CorrectAnswers:   correct,
				IncorrectAnswers: incorrect,
				Remaining:        prj.TotalQuestions - (correct + incorrect),
			}
			if err := svc.repo.UpdateParticipantCounts(ctx, p, exec); err != nil {
				return errors.Wrapf(err, "updating participant %d", u.ParticipantID)
			}
		}

		for _, id := range touched {
			counts, err := svc.refreshStatuses(ctx, projects[id], today, exec)
			if err != nil {
				return errors.Wrapf(err, "refreshing statuses of project %d", id)
			}
			recomputed[id] = counts
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recomputed, nil
}

// lockProjects locks and loads the projects touched by the batch, in ascending id order.
func (svc *Service) lockProjects(ctx context.Context, updates []CountsUpdate, exec core.DBExecutor) (map[int]project.Project, []int, error) {
	ids := make([]int, 0, 1)
	seen := make(map[int]bool)
	for _, u := range updates {
		if !seen[u.ProjectID] {
			seen[u.ProjectID] = true
			ids = append(ids, u.ProjectID)
		}
	}
	sort.Ints(ids)

	projects := make(map[int]project.Project, len(ids))
	for _, id := range ids {
		prj, err := svc.prjRepo.LockProjectByID(ctx, id, exec)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "locking project %d", id)
		}
		projects[id] = prj
	}
	return projects, ids, nil
}

// refreshStatuses re-derives and persists the status of every participant of the project.
func (svc *Service) refreshStatuses(ctx context.Context, prj project.Project, today time.Time, exec core.DBExecutor) (StatusCounts, error) {
	participants, err := svc.repo.QueryParticipantsByProject(ctx, prj.ID, exec)
	if err != nil {
		return StatusCounts{}, errors.Wrap(err, "querying participants")
	}

	var counts StatusCounts
	byStatus := make(map[Status][]int, len(Statuses))
	for _, p := range participants {
		status := DeriveStatus(p.CorrectAnswers, prj.TotalQuestions, prj.DateEnd, today)
		byStatus[status] = append(byStatus[status], p.ID)
		counts.Add(status)
	}

	for _, status := range Statuses {
		ids := byStatus[status]
		if len(ids) == 0 {
			continue
		}
		if err = svc.repo.SetParticipantsStatus(ctx, prj.ID, status, ids, exec); err != nil {
			return StatusCounts{}, errors.Wrapf(err, "setting status %s", status)
		}
	}
	return counts, nil
}
