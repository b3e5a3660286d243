package participant

import (
	"bytes"
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/questtrack/questtrack/core"
)

// Participant is a person enrolled in a project, with their answer counters.
type Participant struct {
	ID               int    `json:"id"`
	NationalID       string `json:"rut"`
	Name             string `json:"nombre"`
	CorrectAnswers   int    `json:"respuestas_acertadas"`
	Remaining        int    `json:"en_proceso"`
	IncorrectAnswers int    `json:"respuestas_erroneas"`
	ProjectID        int    `json:"projectId"`
	Status           Status `json:"estado"`
}

// SheetValue is a spreadsheet cell sent as JSON: either a string or a number.
type SheetValue string

func (v *SheetValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = SheetValue(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = SheetValue(n.String())
	return nil
}

// RosterEntry is one spreadsheet row of a roster upload.
type RosterEntry struct {
	NationalID SheetValue `json:"rut" validate:"required,notblank"`
	Name       SheetValue `json:"nombre" validate:"required,notblank"`
}

// Roster contains information needed to enroll participants in a project.
type Roster struct {
	ProjectID      int           `json:"projectId" validate:"required,gt=0"`
	TotalQuestions *int          `json:"totalQuestions" validate:"omitempty,gt=0"`
	Entries        []RosterEntry `json:"data" validate:"required,min=1,dive"`
}

func (r *Roster) Validate(validate *validator.Validate) error {
	for i := range r.Entries {
		r.Entries[i].NationalID = SheetValue(core.CleanString(string(r.Entries[i].NationalID)))
		r.Entries[i].Name = SheetValue(core.CleanString(string(r.Entries[i].Name)))
	}
	return validate.Struct(r)
}

// CountsUpdate overwrites the answer counters of one participant.
// Counters are pointers so that an explicit 0 can be told apart from a missing value.
type CountsUpdate struct {
	ProjectID        int  `json:"projectId" validate:"required,gt=0"`
	ParticipantID    int  `json:"participantId" validate:"required,gt=0"`
	CorrectAnswers   *int `json:"respuestasAcertadas" validate:"required,gte=0"`
	IncorrectAnswers *int `json:"respuestasErroneas" validate:"required,gte=0"`
}

func (cu *CountsUpdate) Validate(validate *validator.Validate) error {
	return validate.Struct(cu)
}

// ParseCountsUpdates decodes a request body holding either a single CountsUpdate or an array of them.
func ParseCountsUpdates(body []byte) ([]CountsUpdate, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, core.NewValidationError(errInvalidBody)
	}

	switch body[0] {
	case '[':
		var updates []CountsUpdate
		if err := json.Unmarshal(body, &updates); err != nil {
			return nil, core.NewValidationError(errInvalidBody)
		}
		return updates, nil
	case '{':
		var update CountsUpdate
		if err := json.Unmarshal(body, &update); err != nil {
			return nil, core.NewValidationError(errInvalidBody)
		}
		return []CountsUpdate{update}, nil
	default:
		return nil, core.NewValidationError(errInvalidBody)
	}
}
