package inmemdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/questtrack/questtrack/core"
	"github.com/questtrack/questtrack/core/participant"
)

var errUnknownProject = errors.New("foreign key violation: unknown project")

type participantRepository struct {
	db *DB
}

var _ participant.Repository = (*participantRepository)(nil) // interface compliance check

func NewParticipantRepository(db *DB) *participantRepository {
	return &participantRepository{db: db}
}

func (repo *participantRepository) CreateParticipants(_ context.Context, participants []participant.Participant, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, p := range participants {
		if _, ok := repo.db.projects[p.ProjectID]; !ok {
			return errUnknownProject
		}
	}
	for _, p := range participants {
		p.ID = repo.db.nextPK("projectsPeopleData")
		repo.db.participants[p.ID] = p
	}
	return nil
}

func (repo *participantRepository) QueryParticipantsByProject(_ context.Context, projectID int, _ ...core.DBExecutor) ([]participant.Participant, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	participants := make([]participant.Participant, 0)
	for _, p := range repo.db.participants {
		if p.ProjectID == projectID {
			participants = append(participants, p)
		}
	}
	sort.Slice(participants, func(i, j int) bool { return participants[i].ID < participants[j].ID })
	return participants, nil
}

func (repo *participantRepository) CountParticipantsByProject(_ context.Context, projectID int, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, p := range repo.db.participants {
		if p.ProjectID == projectID {
			count++
		}
	}
	return count, nil
}

func (repo *participantRepository) UpdateParticipantCounts(_ context.Context, p participant.Participant, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.participants[p.ID]
	if !ok || orig.ProjectID != p.ProjectID {
		return participant.ErrNotFound
	}
	orig.CorrectAnswers = p.CorrectAnswers
	orig.IncorrectAnswers = p.IncorrectAnswers
	orig.Remaining = p.Remaining
	repo.db.participants[p.ID] = orig
	return nil
}

func (repo *participantRepository) SetParticipantsStatus(_ context.Context, projectID int, status participant.Status, ids []int, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		if p, ok := repo.db.participants[id]; ok && p.ProjectID == projectID {
			p.Status = status
			repo.db.participants[id] = p
		}
	}
	return nil
}
