package registration

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mafunzo/core"
)

// Statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Registration is a student's enrollment record for a course.
type Registration struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	CourseID  string    `json:"course_id"`
	Status    string    `json:"status"`
	Note      string    `json:"note"`
	AppliedAt time.Time `json:"applied_at"`           // UTC
	DecidedAt time.Time `json:"decided_at,omitempty"` // UTC; zero while pending
	CreatedAt time.Time `json:"created_at"`           // UTC
	UpdatedAt time.Time `json:"updated_at"`           // UTC
}

func (r *Registration) IsPending() bool  { return r.Status == StatusPending }
func (r *Registration) IsApproved() bool { return r.Status == StatusApproved }
func (r *Registration) IsRejected() bool { return r.Status == StatusRejected }

// IsLive reports whether the registration blocks a re-application for the
// same course: pending and approved do, rejected does not.
func (r *Registration) IsLive() bool {
	return r.Status == StatusPending || r.Status == StatusApproved
}

// NewRegistration contains information needed for a student to apply for a course.
type NewRegistration struct {
	CourseID string `json:"course_id" validate:"required"`
	Note     string `json:"note"`
}

func (nr *NewRegistration) Validate(validate *validator.Validate) error {
	nr.Note = core.CleanString(nr.Note)
	return validate.Struct(nr)
}

// Decision carries an optional note when approving or rejecting.
type Decision struct {
	Note string `json:"note"`
}

func (d *Decision) Validate(validate *validator.Validate) error {
	d.Note = core.CleanString(d.Note)
	return validate.Struct(d)
}

type QueryFilter struct {
	StudentID string `query:"student_id"`
	CourseID  string `query:"course_id"`
	Status    string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.CourseID == "" && qf.Status == ""
}
