package sqlxrepos

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questtrack/questtrack/core"
	"github.com/questtrack/questtrack/core/project"
)

var projectCols = []string{
	"id", "name", "description", "total_participants", "total_questions", "date_start", "date_end", "img",
}

func TestProjectRepository_CreateProject(t *testing.T) {
	ctx := context.Background()
	prj := project.Project{
		Name:              "Quiz",
		Description:       "Weekly quiz",
		TotalParticipants: 20,
		TotalQuestions:    10,
		DateStart:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:           time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Image:             "/images/a.png",
	}

	t.Run("MySQL", func(t *testing.T) {
		db, mock := newMockDB(t, "mysql")
		repo := NewProjectRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO projects (name, description, totalParticipants, total_questions, dateStart, dateEnd, img) VALUES (?, ?, ?, ?, ?, ?, ?)")).
			WithArgs("Quiz", "Weekly quiz", 20, 10, prj.DateStart, prj.DateEnd, "/images/a.png").
			WillReturnResult(sqlmock.NewResult(4, 1))

		created, err := repo.CreateProject(ctx, prj)
		require.NoError(t, err)
		assert.Equal(t, 4, created.ID)
		assert.Equal(t, "/images/a.png", created.Image)
	})

	t.Run("PostgresWithoutImage", func(t *testing.T) {
		db, mock := newMockDB(t, "postgres")
		repo := NewProjectRepository(db)

		noImg := prj
		noImg.Image = ""
		mock.ExpectQuery(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id")).
			WithArgs("Quiz", "Weekly quiz", 20, 10, prj.DateStart, prj.DateEnd, nil).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

		created, err := repo.CreateProject(ctx, noImg)
		require.NoError(t, err)
		assert.Equal(t, 5, created.ID)
		assert.Empty(t, created.Image)
	})
}

func TestProjectRepository_GetProjectByID(t *testing.T) {
	db, mock := newMockDB(t, "mysql")
	repo := NewProjectRepository(db)
	ctx := context.Background()
	q := regexp.QuoteMeta("FROM projects WHERE id = ?")

	t.Run("Found", func(t *testing.T) {
		end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
		mock.ExpectQuery(q).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows(projectCols).
				AddRow(1, "Quiz", "desc", 20, 10, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), end, nil))

		prj, err := repo.GetProjectByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 10, prj.TotalQuestions)
		assert.True(t, prj.DateEnd.Equal(end))
		assert.Empty(t, prj.Image)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(q).WithArgs(9).WillReturnError(sql.ErrNoRows)

		_, err := repo.GetProjectByID(ctx, 9)
		assert.Equal(t, project.ErrNotFound, err)
	})
}

func TestProjectRepository_LockProjectByID(t *testing.T) {
	ctx := context.Background()
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		driver string
		query  string
	}{
		{"mysql", "SELECT id, name, description, totalParticipants AS total_participants, total_questions, dateStart AS date_start, dateEnd AS date_end, img FROM projects WHERE id = ? FOR UPDATE"},
		{"postgres", "FROM projects WHERE id = $1 FOR UPDATE"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			db, mock := newMockDB(t, tt.driver)
			repo := NewProjectRepository(db)

			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta(tt.query)).
				WithArgs(3).
				WillReturnRows(sqlmock.NewRows(projectCols).
					AddRow(3, "Quiz", "desc", 20, 10, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), end, "/images/a.png"))
			mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs(4).WillReturnError(sql.ErrNoRows)
			mock.ExpectRollback()

			tx, err := db.BeginTxx(ctx, nil)
			require.NoError(t, err)

			prj, err := repo.LockProjectByID(ctx, 3, tx)
			require.NoError(t, err)
			assert.Equal(t, 3, prj.ID)
			assert.Equal(t, "/images/a.png", prj.Image)

			_, err = repo.LockProjectByID(ctx, 4, tx)
			assert.Equal(t, project.ErrNotFound, err)
			require.NoError(t, tx.Rollback())
		})
	}
}

func TestProjectRepository_QueryProjects(t *testing.T) {
	db, mock := newMockDB(t, "mysql")
	repo := NewProjectRepository(db)
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("DefaultOrdering", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM projects ORDER BY id ASC")).
			WillReturnRows(sqlmock.NewRows(projectCols).
				AddRow(1, "A", "a", 1, 1, day, day, "/images/a.png").
				AddRow(2, "B", "b", 1, 1, day, day, nil))

		projects, err := repo.QueryProjects(ctx, nil)
		require.NoError(t, err)
		require.Len(t, projects, 2)
		assert.Equal(t, "/images/a.png", projects[0].Image)
	})

	t.Run("CustomOrdering", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM projects ORDER BY dateEnd DESC, name ASC")).
			WillReturnRows(sqlmock.NewRows(projectCols))

		projects, err := repo.QueryProjects(ctx, []core.DBOrdering{{Field: "dateEnd"}, {Field: "name", Ascending: true}})
		require.NoError(t, err)
		assert.Empty(t, projects)
	})
}
