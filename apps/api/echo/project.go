package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/questtrack/questtrack/core"
	"github.com/questtrack/questtrack/core/participant"
	"github.com/questtrack/questtrack/core/project"
)

const msgImageRequired = "an image file is required"

type projectApi struct {
	svc      *project.Service
	ptSvc    *participant.Service
	validate *validator.Validate
}

func registerProjectAPI(g, public *echo.Group, svc *project.Service, ptSvc *participant.Service, validate *validator.Validate) {
	api := projectApi{svc: svc, ptSvc: ptSvc, validate: validate}

	pg := g.Group("/projects")
	pg.POST("", api.create)
	pg.GET("", api.query)

	ppg := public.Group("/projects")
	ppg.GET("/totalQuestions/:projectId", api.totalQuestions)
	ppg.GET("/:id", api.retrieve)
	ppg.GET("/:id/people", api.people)
}

// Handlers

func (api *projectApi) create(ctx echo.Context) error {
	var data project.NewProject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	fh, err := ctx.FormFile("img")
	if err != nil {
		if err == http.ErrMissingFile {
			return core.NewFieldError("img", msgImageRequired)
		}
		return errors.Wrap(err, "reading project image")
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening project image")
	}
	defer func() { _ = file.Close() }()

	prj, err := api.svc.Create(ctx.Request().Context(), data, project.Image{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     file,
	})
	if err != nil {
		return errors.Wrap(err, "creating project")
	}
	return ctx.JSON(http.StatusCreated, prj)
}

func (api *projectApi) query(ctx echo.Context) error {
	var ord Ordering
	ord.Bind(ctx)

	projects, err := api.svc.Query(ctx.Request().Context(), ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *projectApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	prj, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding project by ID")
	}
	return ctx.JSON(http.StatusOK, prj)
}

func (api *projectApi) totalQuestions(ctx echo.Context) error {
	id, err := pathID(ctx, "projectId")
	if err != nil {
		return err
	}
	total, err := api.svc.TotalQuestions(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting total questions")
	}
	return ctx.JSON(http.StatusOK, TotalQuestionsResponse{TotalQuestions: total})
}

func (api *projectApi) people(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	participants, err := api.ptSvc.QueryByProject(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying project participants")
	}
	return ctx.JSON(http.StatusOK, participants)
}
