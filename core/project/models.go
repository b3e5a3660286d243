package project

import (
	"io"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/questtrack/questtrack/core"
)

type Project struct {
	ID                int       `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	TotalParticipants int       `json:"totalParticipants"`
	TotalQuestions    int       `json:"total_questions"`
	DateStart         time.Time `json:"dateStart"`
	DateEnd           time.Time `json:"dateEnd"`
	Image             string    `json:"img"`
}

// NewProject contains information needed to create a new Project.
// It is bound from the multipart form sent by the dashboard.
type NewProject struct {
	Name              string `form:"name" validate:"required,notblank"`
	Description       string `form:"description" validate:"required,notblank"`
	TotalParticipants int    `form:"totalParticipants" validate:"required,gt=0"`
	TotalQuestions    int    `form:"total_questions" validate:"required,gt=0"`
	DateStart         string `form:"dateStart" validate:"required,isodate"`
	DateEnd           string `form:"dateEnd" validate:"required,isodate"`
}

func (np *NewProject) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.Description = core.CleanString(np.Description)
	np.DateStart = core.CleanString(np.DateStart)
	np.DateEnd = core.CleanString(np.DateEnd)

	if err := validate.Struct(np); err != nil {
		return err
	}

	start, _ := core.ParseDate(np.DateStart)
	end, _ := core.ParseDate(np.DateEnd)
	if end.Before(start) {
		return core.NewFieldError("dateEnd", errEndBeforeStart.Error())
	}
	return nil
}

// Image is an uploaded project image.
type Image struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// orderingFields maps the API ordering fields to Project attributes.
var orderingFields = map[string]bool{
	"id":              true,
	"name":            true,
	"dateStart":       true,
	"dateEnd":         true,
	"total_questions": true,
}

// CleanOrdering drops orderings on unknown fields.
func CleanOrdering(ordering []core.DBOrdering) []core.DBOrdering {
	cleaned := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if orderingFields[ord.Field] {
			cleaned = append(cleaned, ord)
		}
	}
	return cleaned
}
