package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mafunzo/core"
)

// Amounts are integer cents to keep balance arithmetic exact.

type Course struct {
	ID              string    `json:"id"`
	Code            string    `json:"code"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ApplicationFee  int64     `json:"application_fee"`
	CourseFee       int64     `json:"course_fee"`
	MaxInstallments int       `json:"max_installments"`
	IsPublished     *bool     `json:"is_published"`
	CreatedAt       time.Time `json:"created_at"` // UTC
	UpdatedAt       time.Time `json:"updated_at"` // UTC
}

func (c *Course) SetPublished(published bool) {
	c.IsPublished = &published
}

func (c *Course) Published() bool {
	return c.IsPublished != nil && *c.IsPublished
}

// Module is a unit of course material.
type Module struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Position    int       `json:"position"`
	IsPublished *bool     `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (m *Module) SetPublished(published bool) {
	m.IsPublished = &published
}

func (m *Module) Published() bool {
	return m.IsPublished != nil && *m.IsPublished
}

type Assignment struct {
	ID           string    `json:"id"`
	ModuleID     string    `json:"module_id"`
	Title        string    `json:"title"`
	Instructions string    `json:"instructions"`
	DueAt        time.Time `json:"due_at"`
	MaxScore     int       `json:"max_score"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

type Quiz struct {
	ID        string     `json:"id"`
	ModuleID  string     `json:"module_id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"created_at"` // UTC
	UpdatedAt time.Time  `json:"updated_at"` // UTC
}

type Question struct {
	ID       string   `json:"id"`
	QuizID   string   `json:"quiz_id"`
	Position int      `json:"position"`
	Prompt   string   `json:"prompt"`
	Choices  []string `json:"choices"`
	Correct  int      `json:"correct"` // index into Choices; stripped from student views
}

type QuizSubmission struct {
	ID          string    `json:"id"`
	QuizID      string    `json:"quiz_id"`
	StudentID   string    `json:"student_id"`
	Answers     []int     `json:"answers"`
	Score       int       `json:"score"`
	MaxScore    int       `json:"max_score"`
	SubmittedAt time.Time `json:"submitted_at"` // UTC
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Code            string `json:"code" validate:"required,alphanum_"`
	Title           string `json:"title" validate:"required"`
	Description     string `json:"description"`
	ApplicationFee  int64  `json:"application_fee" validate:"min=0"`
	CourseFee       int64  `json:"course_fee" validate:"required,min=1"`
	MaxInstallments int    `json:"max_installments" validate:"required,min=1"`
	IsPublished     *bool  `json:"is_published"`
}

func (nc *NewCourse) Validate(validate *validator.Validate, svc ServiceInterface) error {
	nc.Code = core.CleanString(nc.Code, true /* lower */)
	nc.Title = core.CleanString(nc.Title)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckCodeUniqueness(nc.Code)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Code            string  `json:"code" validate:"omitempty,alphanum_"`
	Title           string  `json:"title"`
	Description     *string `json:"description"`
	ApplicationFee  *int64  `json:"application_fee" validate:"omitempty,min=0"`
	CourseFee       *int64  `json:"course_fee" validate:"omitempty,min=1"`
	MaxInstallments *int    `json:"max_installments" validate:"omitempty,min=1"`
	IsPublished     *bool   `json:"is_published"`
}

func (uc *UpdateCourse) Validate(origCourse Course, validate *validator.Validate, svc ServiceInterface) error {
	code := core.CleanString(uc.Code, true /* lower */)
	if code != "" {
		uc.Code = code
	} else {
		uc.Code = origCourse.Code
	}
	uc.Title = core.CleanString(uc.Title)
	if uc.Title == "" {
		uc.Title = origCourse.Title
	}

	if err := validate.Struct(uc); err != nil {
		return err
	}
	return svc.CheckCodeUniqueness(uc.Code, origCourse)
}

type NewModule struct {
	Title       string `json:"title" validate:"required"`
	Body        string `json:"body"`
	Position    int    `json:"position" validate:"min=0"`
	IsPublished *bool  `json:"is_published"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	return validate.Struct(nm)
}

type UpdateModule struct {
	Title       string  `json:"title"`
	Body        *string `json:"body"`
	Position    *int    `json:"position" validate:"omitempty,min=0"`
	IsPublished *bool   `json:"is_published"`
}

func (um *UpdateModule) Validate(origMod Module, validate *validator.Validate) error {
	um.Title = core.CleanString(um.Title)
	if um.Title == "" {
		um.Title = origMod.Title
	}
	return validate.Struct(um)
}

type NewAssignment struct {
	Title        string    `json:"title" validate:"required"`
	Instructions string    `json:"instructions"`
	DueAt        time.Time `json:"due_at" validate:"required"`
	MaxScore     int       `json:"max_score" validate:"required,min=1"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	return validate.Struct(na)
}

type NewQuiz struct {
	Title     string        `json:"title" validate:"required"`
	Questions []NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

type NewQuestion struct {
	Prompt  string   `json:"prompt" validate:"required"`
	Choices []string `json:"choices" validate:"required,min=2,dive,required"`
	Correct int      `json:"correct" validate:"min=0"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	return validate.Struct(nq)
}

// NewSubmission contains a student's answers, indexed by question position.
type NewSubmission struct {
	Answers []int `json:"answers" validate:"required,min=1"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	return validate.Struct(ns)
}

type QueryFilter struct {
	Search        string `query:"search"`
	PublishedOnly bool   `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter looks a Course up by one of its unique fields; first set field wins.
type GetFilter struct {
	ID   string
	Code string
}
