package inmemdb

import (
	"context"
	"sort"

	"github.com/questtrack/questtrack/core"
	"github.com/questtrack/questtrack/core/project"
)

type projectRepository struct {
	db *DB
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *DB) *projectRepository {
	return &projectRepository{db: db}
}

func (repo *projectRepository) CreateProject(_ context.Context, prj project.Project, _ ...core.DBExecutor) (project.Project, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	prj.ID = repo.db.nextPK("projects")
	prj.DateStart = core.DateOf(prj.DateStart)
	prj.DateEnd = core.DateOf(prj.DateEnd)
	repo.db.projects[prj.ID] = prj
	return prj, nil
}

func (repo *projectRepository) QueryProjects(_ context.Context, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]project.Project, error) {
	repo.db.mutex.RLock()
	projects := make([]project.Project, 0, len(repo.db.projects))
	for _, prj := range repo.db.projects {
		projects = append(projects, prj)
	}
	repo.db.mutex.RUnlock()

	ordering = append(ordering, core.DBOrdering{Field: "id", Ascending: true})
	sort.SliceStable(projects, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareProjects(projects[i], projects[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return projects, nil
}

func compareProjects(a, b project.Project, field string) int {
	cmpInt := func(x, y int) int {
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}

	switch field {
	case "id":
		return cmpInt(a.ID, b.ID)
	case "name":
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	case "dateStart":
		return a.DateStart.Compare(b.DateStart)
	case "dateEnd":
		return a.DateEnd.Compare(b.DateEnd)
	case "total_questions":
		return cmpInt(a.TotalQuestions, b.TotalQuestions)
	}
	return 0
}

func (repo *projectRepository) GetProjectByID(_ context.Context, id int, _ ...core.DBExecutor) (project.Project, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if prj, ok := repo.db.projects[id]; ok {
		return prj, nil
	}
	return project.Project{}, project.ErrNotFound
}

// LockProjectByID needs no lock of its own: transactions are already serialized by the transactor.
func (repo *projectRepository) LockProjectByID(ctx context.Context, id int, exec ...core.DBExecutor) (project.Project, error) {
	return repo.GetProjectByID(ctx, id, exec...)
}
