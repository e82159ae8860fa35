package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
)

var (
	// errors
	ErrNotFound        = errors.New("course not found")
	ErrModuleNotFound  = errors.New("module not found")
	ErrQuizNotFound    = errors.New("quiz not found")
	ErrCodeExists      = errors.New("a course with this code already exists")
	errAnswersMismatch = errors.New("an answer is required for every question")
	errQuizNoQuestions = errors.New("quiz has no questions")
)

type (
	Repository interface {
		CheckCodeUniqueness(ctx context.Context, code string, excludedCourses []Course, exec ...core.DBExecutor) error
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
		GetCourse(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		DeleteCoursesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		CreateModule(ctx context.Context, mod Module, exec ...core.DBExecutor) (Module, error)
		QueryModules(ctx context.Context, courseID string, publishedOnly bool, exec ...core.DBExecutor) ([]Module, error)
		GetModule(ctx context.Context, id string, exec ...core.DBExecutor) (Module, error)
		UpdateModule(ctx context.Context, mod Module, exec ...core.DBExecutor) (Module, error)
		DeleteModulesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		CreateAssignment(ctx context.Context, asg Assignment, exec ...core.DBExecutor) (Assignment, error)
		QueryAssignments(ctx context.Context, moduleID string, exec ...core.DBExecutor) ([]Assignment, error)

		// CreateQuiz persists the quiz and its questions atomically.
		CreateQuiz(ctx context.Context, quiz Quiz, exec ...core.DBExecutor) (Quiz, error)
		// GetQuiz returns the quiz with its questions ordered by position.
		GetQuiz(ctx context.Context, id string, exec ...core.DBExecutor) (Quiz, error)
		QueryQuizzes(ctx context.Context, moduleID string, exec ...core.DBExecutor) ([]Quiz, error)

		CreateSubmission(ctx context.Context, sub QuizSubmission, exec ...core.DBExecutor) (QuizSubmission, error)
		QuerySubmissions(ctx context.Context, quizID, studentID string, exec ...core.DBExecutor) ([]QuizSubmission, error)
	}

	ServiceInterface interface {
		CheckCodeUniqueness(code string, exclCourses ...Course) error
		Create(nc NewCourse) (Course, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		GetByID(id string) (Course, error)
		Update(id string, uc UpdateCourse) (Course, error)
		Delete(ids ...string) error

		AddModule(courseID string, nm NewModule) (Module, error)
		QueryModules(courseID string, publishedOnly bool) ([]Module, error)
		GetModule(id string) (Module, error)
		UpdateModule(id string, um UpdateModule) (Module, error)
		DeleteModule(id string) error

		AddAssignment(moduleID string, na NewAssignment) (Assignment, error)
		QueryAssignments(moduleID string) ([]Assignment, error)

		AddQuiz(moduleID string, nq NewQuiz) (Quiz, error)
		GetQuiz(id string) (Quiz, error)
		QueryQuizzes(moduleID string) ([]Quiz, error)

		Submit(quizID, studentID string, ns NewSubmission) (QuizSubmission, error)
		QuerySubmissions(quizID, studentID string) ([]QuizSubmission, error)
	}

	service struct {
		db   core.DB
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(db core.DB, repo Repository) *service {
	return &service{db: db, repo: repo}
}

func (svc *service) CheckCodeUniqueness(code string, exclCourses ...Course) error {
	if err := svc.repo.CheckCodeUniqueness(context.Background(), code, exclCourses); err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		Code:            nc.Code,
		Title:           nc.Title,
		Description:     nc.Description,
		ApplicationFee:  nc.ApplicationFee,
		CourseFee:       nc.CourseFee,
		MaxInstallments: nc.MaxInstallments,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if nc.IsPublished != nil {
		crs.IsPublished = nc.IsPublished
	} else {
		crs.SetPublished(false)
	}
	return svc.repo.CreateCourse(context.Background(), crs)
}

func (svc *service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(context.Background(), filter, ordering)
}

func (svc *service) GetByID(id string) (Course, error) {
	return svc.repo.GetCourse(context.Background(), GetFilter{ID: id})
}

func (svc *service) Update(id string, uc UpdateCourse) (Course, error) {
	orig, err := svc.GetByID(id)
	if err != nil {
		return Course{}, err
	}

	crs := Course{
		ID:              id,
		Code:            uc.Code,
		Title:           uc.Title,
		Description:     orig.Description,
		ApplicationFee:  orig.ApplicationFee,
		CourseFee:       orig.CourseFee,
		MaxInstallments: orig.MaxInstallments,
		IsPublished:     orig.IsPublished,
		CreatedAt:       orig.CreatedAt,
		UpdatedAt:       time.Now().UTC(),
	}
	if uc.Description != nil {
		crs.Description = *uc.Description
	}
	if uc.ApplicationFee != nil {
		crs.ApplicationFee = *uc.ApplicationFee
	}
	if uc.CourseFee != nil {
		crs.CourseFee = *uc.CourseFee
	}
	if uc.MaxInstallments != nil {
		crs.MaxInstallments = *uc.MaxInstallments
	}
	if uc.IsPublished != nil {
		crs.IsPublished = uc.IsPublished
	}
	return svc.repo.UpdateCourse(context.Background(), crs)
}

func (svc *service) Delete(ids ...string) error {
	_, err := svc.repo.DeleteCoursesByID(context.Background(), ids)
	return err
}

func (svc *service) AddModule(courseID string, nm NewModule) (Module, error) {
	if _, err := svc.GetByID(courseID); err != nil {
		return Module{}, err
	}

	now := time.Now().UTC()
	mod := Module{
		CourseID:  courseID,
		Title:     nm.Title,
		Body:      nm.Body,
		Position:  nm.Position,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nm.IsPublished != nil {
		mod.IsPublished = nm.IsPublished
	} else {
		mod.SetPublished(false)
	}
	return svc.repo.CreateModule(context.Background(), mod)
}

func (svc *service) QueryModules(courseID string, publishedOnly bool) ([]Module, error) {
	return svc.repo.QueryModules(context.Background(), courseID, publishedOnly)
}

func (svc *service) GetModule(id string) (Module, error) {
	return svc.repo.GetModule(context.Background(), id)
}

func (svc *service) UpdateModule(id string, um UpdateModule) (Module, error) {
	orig, err := svc.GetModule(id)
	if err != nil {
		return Module{}, err
	}

	mod := Module{
		ID:          id,
		CourseID:    orig.CourseID,
		Title:       um.Title,
		Body:        orig.Body,
		Position:    orig.Position,
		IsPublished: orig.IsPublished,
		CreatedAt:   orig.CreatedAt,
		UpdatedAt:   time.Now().UTC(),
	}
	if um.Body != nil {
		mod.Body = *um.Body
	}
	if um.Position != nil {
		mod.Position = *um.Position
	}
	if um.IsPublished != nil {
		mod.IsPublished = um.IsPublished
	}
	return svc.repo.UpdateModule(context.Background(), mod)
}

func (svc *service) DeleteModule(id string) error {
	_, err := svc.repo.DeleteModulesByID(context.Background(), []string{id})
	return err
}

func (svc *service) AddAssignment(moduleID string, na NewAssignment) (Assignment, error) {
	if _, err := svc.GetModule(moduleID); err != nil {
		return Assignment{}, err
	}

	now := time.Now().UTC()
	asg := Assignment{
		ModuleID:     moduleID,
		Title:        na.Title,
		Instructions: na.Instructions,
		DueAt:        na.DueAt.UTC(),
		MaxScore:     na.MaxScore,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return svc.repo.CreateAssignment(context.Background(), asg)
}

func (svc *service) QueryAssignments(moduleID string) ([]Assignment, error) {
	return svc.repo.QueryAssignments(context.Background(), moduleID)
}

func (svc *service) AddQuiz(moduleID string, nq NewQuiz) (Quiz, error) {
	if _, err := svc.GetModule(moduleID); err != nil {
		return Quiz{}, err
	}

	now := time.Now().UTC()
	quiz := Quiz{
		ModuleID:  moduleID,
		Title:     nq.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, q := range nq.Questions {
		quiz.Questions = append(quiz.Questions, Question{
			Position: i,
			Prompt:   core.CleanString(q.Prompt),
			Choices:  q.Choices,
			Correct:  q.Correct,
		})
	}
	return svc.repo.CreateQuiz(context.Background(), quiz)
}

func (svc *service) GetQuiz(id string) (Quiz, error) {
	return svc.repo.GetQuiz(context.Background(), id)
}

func (svc *service) QueryQuizzes(moduleID string) ([]Quiz, error) {
	return svc.repo.QueryQuizzes(context.Background(), moduleID)
}

// Submit auto-grades a student's answers against the quiz's questions;
// the score is the number of correct answers. Retakes are allowed, each
// submission is kept.
func (svc *service) Submit(quizID, studentID string, ns NewSubmission) (QuizSubmission, error) {
	quiz, err := svc.GetQuiz(quizID)
	if err != nil {
		return QuizSubmission{}, err
	}
	if len(quiz.Questions) == 0 {
		return QuizSubmission{}, core.NewValidationError(errQuizNoQuestions)
	}
	if len(ns.Answers) != len(quiz.Questions) {
		return QuizSubmission{}, core.NewValidationError(
			errAnswersMismatch, core.FieldError{Field: "answers", Error: errAnswersMismatch.Error()})
	}

	var score int
	for i, q := range quiz.Questions {
		if ns.Answers[i] == q.Correct {
			score++
		}
	}

	sub := QuizSubmission{
		QuizID:      quizID,
		StudentID:   studentID,
		Answers:     ns.Answers,
		Score:       score,
		MaxScore:    len(quiz.Questions),
		SubmittedAt: time.Now().UTC(),
	}
	return svc.repo.CreateSubmission(context.Background(), sub)
}

func (svc *service) QuerySubmissions(quizID, studentID string) ([]QuizSubmission, error) {
	return svc.repo.QuerySubmissions(context.Background(), quizID, studentID)
}
