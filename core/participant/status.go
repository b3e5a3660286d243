package participant

import (
	"time"

	"github.com/questtrack/questtrack/core"
)

// Status is the lifecycle label of a participant within a project.
type Status string

const (
	StatusCompleted  Status = "Completed"
	StatusDelayed    Status = "Delayed"
	StatusInProgress Status = "InProgress"
)

var Statuses = []Status{StatusCompleted, StatusDelayed, StatusInProgress}

// DeriveStatus maps a participant's correct answers and the project's question total and end date
// to a Status, as seen on `today`. Only calendar dates are compared.
//
// Completion wins over lateness: a participant who answered every question correctly is Completed
// even after the end date.
func DeriveStatus(correctAnswers, totalQuestions int, endDate, today time.Time) Status {
	if correctAnswers == totalQuestions {
		return StatusCompleted
	}
	if core.DateOf(today).After(core.DateOf(endDate)) && correctAnswers < totalQuestions {
		return StatusDelayed
	}
	return StatusInProgress
}

// StatusCounts is the number of participants of a project per Status.
type StatusCounts struct {
	Completed  int `json:"Completed"`
	Delayed    int `json:"Delayed"`
	InProgress int `json:"InProgress"`
}

func (c *StatusCounts) Add(s Status) {
	switch s {
	case StatusCompleted:
		c.Completed++
	case StatusDelayed:
		c.Delayed++
	case StatusInProgress:
		c.InProgress++
	}
}
