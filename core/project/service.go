package project

import (
	"context"

	"github.com/pkg/errors"

	"github.com/questtrack/questtrack/core"
)

var (
	// errors
	ErrNotFound       = errors.New("project not found")
	errEndBeforeStart = errors.New("dateEnd cannot be before dateStart")
)

type (
	Repository interface {
		CreateProject(ctx context.Context, prj Project, exec ...core.DBExecutor) (Project, error)
		QueryProjects(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Project, error)
		GetProjectByID(ctx context.Context, id int, exec ...core.DBExecutor) (Project, error)
		// LockProjectByID is GetProjectByID holding a row lock until the end of the transaction `exec` belongs to.
		LockProjectByID(ctx context.Context, id int, exec ...core.DBExecutor) (Project, error)
	}

	Service struct {
		repo   Repository
		images core.ImageStore
		logger core.Logger
	}
)

func NewService(repo Repository, images core.ImageStore, logger core.Logger) *Service {
	return &Service{repo: repo, images: images, logger: logger}
}

// Create stores the image and inserts the project. The image is removed again if the insert fails.
// `np` must have been validated.
func (svc *Service) Create(ctx context.Context, np NewProject, img Image) (Project, error) {
	start, err := core.ParseDate(np.DateStart)
	if err != nil {
		return Project{}, core.NewFieldError("dateStart", err.Error())
	}
	end, err := core.ParseDate(np.DateEnd)
	if err != nil {
		return Project{}, core.NewFieldError("dateEnd", err.Error())
	}

	ref, err := svc.images.Save(ctx, img.Filename, img.ContentType, img.Content)
	if err != nil {
		return Project{}, errors.Wrap(err, "saving project image")
	}

	prj, err := svc.repo.CreateProject(ctx, Project{
		Name:              np.Name,
		Description:       np.Description,
		TotalParticipants: np.TotalParticipants,
		TotalQuestions:    np.TotalQuestions,
		DateStart:         start,
		DateEnd:           end,
		Image:             ref,
	})
	if err != nil {
		if dErr := svc.images.Delete(ctx, ref); dErr != nil {
			svc.logger.Warn("could not remove orphan project image", dErr, map[string]interface{}{"img": ref})
		}
		return Project{}, errors.Wrap(err, "creating project")
	}
	return prj, nil
}

func (svc *Service) Query(ctx context.Context, ordering []core.DBOrdering) ([]Project, error) {
	return svc.repo.QueryProjects(ctx, CleanOrdering(ordering))
}

func (svc *Service) GetByID(ctx context.Context, id int) (Project, error) {
	return svc.repo.GetProjectByID(ctx, id)
}

// TotalQuestions returns the number of questions of a project.
func (svc *Service) TotalQuestions(ctx context.Context, id int) (int, error) {
	prj, err := svc.repo.GetProjectByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return prj.TotalQuestions, nil
}
