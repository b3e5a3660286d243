package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/questtrack/questtrack/core"
	"github.com/questtrack/questtrack/core/project"
)

// columns are aliased to lowercase names: postgres folds unquoted identifiers
const projectColumns = "id, name, description, totalParticipants AS total_participants, " +
	"total_questions, dateStart AS date_start, dateEnd AS date_end, img"

type projectRow struct {
	ID                int         `db:"id"`
	Name              string      `db:"name"`
	Description       string      `db:"description"`
	TotalParticipants int         `db:"total_participants"`
	TotalQuestions    int         `db:"total_questions"`
	DateStart         time.Time   `db:"date_start"`
	DateEnd           time.Time   `db:"date_end"`
	Image             null.String `db:"img"`
}

type projectRepository struct {
	baseRepository
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(exec core.DBExecutor) *projectRepository {
	return &projectRepository{baseRepository{exec: exec}}
}

func (repo projectRepository) toRow(prj project.Project) projectRow {
	return projectRow{
		ID:                prj.ID,
		Name:              prj.Name,
		Description:       prj.Description,
		TotalParticipants: prj.TotalParticipants,
		TotalQuestions:    prj.TotalQuestions,
		DateStart:         core.DateOf(prj.DateStart),
		DateEnd:           core.DateOf(prj.DateEnd),
		Image:             null.NewString(prj.Image, prj.Image != ""),
	}
}

func (repo projectRepository) fromRow(row projectRow) project.Project {
	return project.Project{
		ID:                row.ID,
		Name:              row.Name,
		Description:       row.Description,
		TotalParticipants: row.TotalParticipants,
		TotalQuestions:    row.TotalQuestions,
		DateStart:         core.DateOf(row.DateStart),
		DateEnd:           core.DateOf(row.DateEnd),
		Image:             row.Image.String,
	}
}

func (repo projectRepository) CreateProject(ctx context.Context, prj project.Project, exec ...core.DBExecutor) (project.Project, error) {
	row := repo.toRow(prj)
	id, err := insertReturningID(
		ctx,
		repo.getExec(exec),
		"INSERT INTO projects (name, description, totalParticipants, total_questions, dateStart, dateEnd, img) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?)",
		row.Name, row.Description, row.TotalParticipants, row.TotalQuestions, row.DateStart, row.DateEnd, row.Image,
	)
	if err != nil {
		return project.Project{}, errors.Wrap(err, "inserting project")
	}
	row.ID = id
	return repo.fromRow(row), nil
}

func (repo projectRepository) QueryProjects(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]project.Project, error) {
	e := repo.getExec(exec)

	q := "SELECT " + projectColumns + " FROM projects"
	if len(ordering) > 0 {
		clauses := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			clauses = append(clauses, ord.String())
		}
		q += " ORDER BY " + strings.Join(clauses, ", ")
	} else {
		q += " ORDER BY id ASC"
	}

	var rows []projectRow
	if err := e.SelectContext(ctx, &rows, e.Rebind(q)); err != nil {
		return nil, errors.Wrap(err, "selecting projects")
	}
	projects := make([]project.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, repo.fromRow(row))
	}
	return projects, nil
}

func (repo projectRepository) GetProjectByID(ctx context.Context, id int, exec ...core.DBExecutor) (project.Project, error) {
	return repo.getByID(ctx, id, "", exec)
}

// LockProjectByID must run inside a transaction, otherwise the lock is released right away.
func (repo projectRepository) LockProjectByID(ctx context.Context, id int, exec ...core.DBExecutor) (project.Project, error) {
	return repo.getByID(ctx, id, " FOR UPDATE", exec)
}

func (repo projectRepository) getByID(ctx context.Context, id int, suffix string, exec []core.DBExecutor) (project.Project, error) {
	e := repo.getExec(exec)

	var row projectRow
	q := e.Rebind("SELECT " + projectColumns + " FROM projects WHERE id = ?" + suffix)
	if err := e.GetContext(ctx, &row, q, id); err != nil {
		return project.Project{}, trapNoRowsErr(err, project.ErrNotFound, "selecting project")
	}
	return repo.fromRow(row), nil
}
