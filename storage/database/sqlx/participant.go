package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/questtrack/questtrack/core"
	"github.com/questtrack/questtrack/core/participant"
)

const participantColumns = "id, rut, nombre, respuestas_acertadas, en_proceso, respuestas_erroneas, " +
	"projectId AS project_id, estado"

type participantRow struct {
	ID               int         `db:"id"`
	NationalID       string      `db:"rut"`
	Name             string      `db:"nombre"`
	CorrectAnswers   int         `db:"respuestas_acertadas"`
	Remaining        int         `db:"en_proceso"`
	IncorrectAnswers int         `db:"respuestas_erroneas"`
	ProjectID        int         `db:"project_id"`
	Status           null.String `db:"estado"`
}

type participantRepository struct {
	baseRepository
}

var _ participant.Repository = (*participantRepository)(nil) // interface compliance check

func NewParticipantRepository(exec core.DBExecutor) *participantRepository {
	return &participantRepository{baseRepository{exec: exec}}
}

func (repo participantRepository) toRow(p participant.Participant) participantRow {
	return participantRow{
		ID:               p.ID,
		NationalID:       p.NationalID,
		Name:             p.Name,
		CorrectAnswers:   p.CorrectAnswers,
		Remaining:        p.Remaining,
		IncorrectAnswers: p.IncorrectAnswers,
		ProjectID:        p.ProjectID,
		Status:           null.NewString(string(p.Status), p.Status != ""),
	}
}

func (repo participantRepository) fromRow(row participantRow) participant.Participant {
	return participant.Participant{
		ID:               row.ID,
		NationalID:       row.NationalID,
		Name:             row.Name,
		CorrectAnswers:   row.CorrectAnswers,
		Remaining:        row.Remaining,
		IncorrectAnswers: row.IncorrectAnswers,
		ProjectID:        row.ProjectID,
		Status:           participant.Status(row.Status.String),
	}
}

func (repo participantRepository) CreateParticipants(ctx context.Context, participants []participant.Participant, exec ...core.DBExecutor) error {
	if len(participants) == 0 {
		return nil
	}

	rows := make([]participantRow, 0, len(participants))
	for _, p := range participants {
		rows = append(rows, repo.toRow(p))
	}

	_, err := sqlx.NamedExecContext(
		ctx,
		repo.getExec(exec),
		"INSERT INTO projectsPeopleData (rut, nombre, respuestas_acertadas, en_proceso, respuestas_erroneas, projectId, estado) "+
			"VALUES (:rut, :nombre, :respuestas_acertadas, :en_proceso, :respuestas_erroneas, :project_id, :estado)",
		rows,
	)
	return errors.Wrap(err, "inserting participants")
}

func (repo participantRepository) QueryParticipantsByProject(ctx context.Context, projectID int, exec ...core.DBExecutor) ([]participant.Participant, error) {
	e := repo.getExec(exec)

	var rows []participantRow
	q := e.Rebind("SELECT " + participantColumns + " FROM projectsPeopleData WHERE projectId = ? ORDER BY id ASC")
	if err := e.SelectContext(ctx, &rows, q, projectID); err != nil {
		return nil, errors.Wrap(err, "selecting participants")
	}
	participants := make([]participant.Participant, 0, len(rows))
	for _, row := range rows {
		participants = append(participants, repo.fromRow(row))
	}
	return participants, nil
}

func (repo participantRepository) CountParticipantsByProject(ctx context.Context, projectID int, exec ...core.DBExecutor) (int, error) {
	e := repo.getExec(exec)

	var count int
	q := e.Rebind("SELECT COUNT(*) FROM projectsPeopleData WHERE projectId = ?")
	if err := e.GetContext(ctx, &count, q, projectID); err != nil {
		return 0, errors.Wrap(err, "counting participants")
	}
	return count, nil
}

func (repo participantRepository) UpdateParticipantCounts(ctx context.Context, p participant.Participant, exec ...core.DBExecutor) error {
	err := execAffecting(
		ctx,
		repo.getExec(exec),
		participant.ErrNotFound,
		"UPDATE projectsPeopleData SET respuestas_acertadas = ?, respuestas_erroneas = ?, en_proceso = ? "+
			"WHERE id = ? AND projectId = ?",
		p.CorrectAnswers, p.IncorrectAnswers, p.Remaining, p.ID, p.ProjectID,
	)
	if err != nil && err != participant.ErrNotFound {
		return errors.Wrap(err, "updating participant")
	}
	return err
}

func (repo participantRepository) SetParticipantsStatus(ctx context.Context, projectID int, status participant.Status, ids []int, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	e := repo.getExec(exec)

	q, args, err := sqlx.In("UPDATE projectsPeopleData SET estado = ? WHERE projectId = ? AND id IN (?)", string(status), projectID, ids)
	if err != nil {
		return errors.Wrap(err, "building status update")
	}
	if _, err = e.ExecContext(ctx, e.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "updating participants status")
	}
	return nil
}
