package echoapi

import (
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/questtrack/questtrack/core/participant"
)

type participantApi struct {
	svc      *participant.Service
	validate *validator.Validate
	metrics  *metrics
}

func registerParticipantAPI(g, public *echo.Group, svc *participant.Service, validate *validator.Validate, m *metrics) {
	api := participantApi{svc: svc, validate: validate, metrics: m}

	g.POST("/upload-excel", api.uploadRoster)

	public.GET("/projectsPeopleData/:projectId", api.queryByProject)
	public.GET("/countPeople/:projectId", api.count)
	public.PUT("/update-participants", api.updateCounts)
	public.GET("/estado-participantes/:projectId", api.statusSummary)
}

// Handlers

func (api *participantApi) uploadRoster(ctx echo.Context) error {
	var data participant.Roster
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Roster")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	n, err := api.svc.UploadRoster(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "uploading roster")
	}
	return ctx.JSON(http.StatusOK, UploadResponse{Message: "roster uploaded successfully", Count: n})
}

func (api *participantApi) queryByProject(ctx echo.Context) error {
	id, err := pathID(ctx, "projectId")
	if err != nil {
		return err
	}
	participants, err := api.svc.QueryByProject(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying project participants")
	}
	return ctx.JSON(http.StatusOK, participants)
}

func (api *participantApi) count(ctx echo.Context) error {
	id, err := pathID(ctx, "projectId")
	if err != nil {
		return err
	}
	n, err := api.svc.CountByProject(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "counting project participants")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *participantApi) updateCounts(ctx echo.Context) error {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading request body")
	}
	updates, err := participant.ParseCountsUpdates(body)
	if err != nil {
		return err
	}
	for i := range updates {
		if err = updates[i].Validate(api.validate); err != nil {
			return err
		}
	}

	counts, err := api.svc.UpdateCounts(ctx.Request().Context(), updates)
	if err != nil {
		return errors.Wrap(err, "updating participants counts")
	}
	api.metrics.observeRecomputed(counts)
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "participants and statuses updated successfully"})
}

func (api *participantApi) statusSummary(ctx echo.Context) error {
	id, err := pathID(ctx, "projectId")
	if err != nil {
		return err
	}
	counts, err := api.svc.StatusSummary(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "summarizing participants status")
	}
	return ctx.JSON(http.StatusOK, counts)
}
