package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core/course"
	"github.com/trezcool/mafunzo/core/registration"
)

type courseApi struct {
	courseSvc course.ServiceInterface
	regSvc    registration.ServiceInterface
	validate  *validator.Validate
}

func registerCourseAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	courseSvc course.ServiceInterface,
	regSvc registration.ServiceInterface,
	validate *validator.Validate,
) {
	api := courseApi{
		courseSvc: courseSvc,
		regSvc:    regSvc,
		validate:  validate,
	}

	cg := g.Group("/courses", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, adminMiddleware())
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update, adminMiddleware())
	cg.DELETE("/:id", api.destroy, adminMiddleware())
	cg.GET("/:id/modules", api.queryModules)
	cg.POST("/:id/modules", api.addModule, staffMiddleware())

	mg := g.Group("/modules/:id", jwt)
	mg.GET("", api.retrieveModule)
	mg.PUT("", api.updateModule, staffMiddleware())
	mg.DELETE("", api.destroyModule, staffMiddleware())
	mg.GET("/assignments", api.queryAssignments)
	mg.POST("/assignments", api.addAssignment, staffMiddleware())
	mg.GET("/quizzes", api.queryQuizzes)
	mg.POST("/quizzes", api.addQuiz, staffMiddleware())

	qg := g.Group("/quizzes/:id", jwt)
	qg.GET("", api.retrieveQuiz)
	qg.POST("/submissions", api.submit, studentMiddleware())
	qg.GET("/submissions", api.querySubmissions)
}

// studentQuestion is a Question as seen by students: no correct answer.
type studentQuestion struct {
	ID       string   `json:"id"`
	QuizID   string   `json:"quiz_id"`
	Position int      `json:"position"`
	Prompt   string   `json:"prompt"`
	Choices  []string `json:"choices"`
}

type studentQuiz struct {
	ID        string            `json:"id"`
	ModuleID  string            `json:"module_id"`
	Title     string            `json:"title"`
	Questions []studentQuestion `json:"questions"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func newStudentQuiz(quiz course.Quiz) studentQuiz {
	sq := studentQuiz{
		ID:        quiz.ID,
		ModuleID:  quiz.ModuleID,
		Title:     quiz.Title,
		Questions: make([]studentQuestion, 0, len(quiz.Questions)),
		CreatedAt: quiz.CreatedAt,
		UpdatedAt: quiz.UpdatedAt,
	}
	for _, q := range quiz.Questions {
		sq.Questions = append(sq.Questions, studentQuestion{
			ID:       q.ID,
			QuizID:   q.QuizID,
			Position: q.Position,
			Prompt:   q.Prompt,
			Choices:  q.Choices,
		})
	}
	return sq
}

// checkMaterialsAccess lets staff through and requires students to hold
// an approved registration for the course.
func (api *courseApi) checkMaterialsAccess(ctx echo.Context, courseID string) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.IsStaff() {
		return nil
	}
	if !claims.IsStudent {
		return errHttpForbidden
	}

	regs, err := api.regSvc.Query(&registration.QueryFilter{
		StudentID: claims.Subject,
		CourseID:  courseID,
		Status:    registration.StatusApproved,
	}, nil)
	if err != nil {
		return errors.Wrap(err, "querying registrations")
	}
	if len(regs) == 0 {
		return errHttpForbidden
	}
	return nil
}

// getAccessibleModule fetches the module and enforces the materials gate;
// students only ever see published modules.
func (api *courseApi) getAccessibleModule(ctx echo.Context) (course.Module, bool, error) {
	mod, err := api.courseSvc.GetModule(ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrModuleNotFound {
			return course.Module{}, false, errHttpNotFound
		}
		return course.Module{}, false, errors.Wrap(err, "getting module")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return course.Module{}, false, errors.Wrap(err, "getting context claims")
	}
	if claims.IsStaff() {
		return mod, true, nil
	}

	if err = api.checkMaterialsAccess(ctx, mod.CourseID); err != nil {
		return course.Module{}, false, err
	}
	if !mod.Published() {
		return course.Module{}, false, errHttpNotFound
	}
	return mod, false, nil
}

// getAccessibleQuiz resolves a quiz through its module's course gate.
func (api *courseApi) getAccessibleQuiz(ctx echo.Context) (course.Quiz, bool, error) {
	quiz, err := api.courseSvc.GetQuiz(ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrQuizNotFound {
			return course.Quiz{}, false, errHttpNotFound
		}
		return course.Quiz{}, false, errors.Wrap(err, "getting quiz")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return course.Quiz{}, false, errors.Wrap(err, "getting context claims")
	}
	if claims.IsStaff() {
		return quiz, true, nil
	}

	mod, err := api.courseSvc.GetModule(quiz.ModuleID)
	if err != nil {
		return course.Quiz{}, false, errors.Wrap(err, "getting quiz module")
	}
	if err = api.checkMaterialsAccess(ctx, mod.CourseID); err != nil {
		return course.Quiz{}, false, err
	}
	if !mod.Published() {
		return course.Quiz{}, false, errHttpNotFound
	}
	return quiz, false, nil
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate, api.courseSvc); err != nil {
		return err
	}

	crs, err := api.courseSvc.Create(data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()
	filter.PublishedOnly = !claims.IsStaff()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.courseSvc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.courseSvc.GetByID(ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting course")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.IsStaff() && !crs.Published() {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	crs, err := api.courseSvc.GetByID(ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting course")
	}

	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(crs, api.validate, api.courseSvc); err != nil {
		return err
	}

	crs, err = api.courseSvc.Update(crs.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	if err := api.courseSvc.Delete(ctx.Param("id")); err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) queryModules(ctx echo.Context) error {
	courseID := ctx.Param("id")
	if err := api.checkMaterialsAccess(ctx, courseID); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	mods, err := api.courseSvc.QueryModules(courseID, !claims.IsStaff())
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "querying modules")
	}
	if mods == nil {
		mods = []course.Module{}
	}
	return ctx.JSON(http.StatusOK, mods)
}

func (api *courseApi) addModule(ctx echo.Context) error {
	var data course.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mod, err := api.courseSvc.AddModule(ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "adding module")
	}
	return ctx.JSON(http.StatusCreated, mod)
}

func (api *courseApi) retrieveModule(ctx echo.Context) error {
	mod, _, err := api.getAccessibleModule(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *courseApi) updateModule(ctx echo.Context) error {
	mod, err := api.courseSvc.GetModule(ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrModuleNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting module")
	}

	var data course.UpdateModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateModule")
	}
	if err := data.Validate(mod, api.validate); err != nil {
		return err
	}

	mod, err = api.courseSvc.UpdateModule(mod.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating module")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *courseApi) destroyModule(ctx echo.Context) error {
	if err := api.courseSvc.DeleteModule(ctx.Param("id")); err != nil {
		if errors.Cause(err) == course.ErrModuleNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting module")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) queryAssignments(ctx echo.Context) error {
	mod, _, err := api.getAccessibleModule(ctx)
	if err != nil {
		return err
	}

	asgs, err := api.courseSvc.QueryAssignments(mod.ID)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if asgs == nil {
		asgs = []course.Assignment{}
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *courseApi) addAssignment(ctx echo.Context) error {
	var data course.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	asg, err := api.courseSvc.AddAssignment(ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == course.ErrModuleNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "adding assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *courseApi) queryQuizzes(ctx echo.Context) error {
	mod, isStaff, err := api.getAccessibleModule(ctx)
	if err != nil {
		return err
	}

	quizzes, err := api.courseSvc.QueryQuizzes(mod.ID)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	if isStaff {
		if quizzes == nil {
			quizzes = []course.Quiz{}
		}
		return ctx.JSON(http.StatusOK, quizzes)
	}

	views := make([]studentQuiz, 0, len(quizzes))
	for _, quiz := range quizzes {
		views = append(views, newStudentQuiz(quiz))
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *courseApi) addQuiz(ctx echo.Context) error {
	var data course.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	quiz, err := api.courseSvc.AddQuiz(ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == course.ErrModuleNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "adding quiz")
	}
	return ctx.JSON(http.StatusCreated, quiz)
}

func (api *courseApi) retrieveQuiz(ctx echo.Context) error {
	quiz, isStaff, err := api.getAccessibleQuiz(ctx)
	if err != nil {
		return err
	}
	if isStaff {
		return ctx.JSON(http.StatusOK, quiz)
	}
	return ctx.JSON(http.StatusOK, newStudentQuiz(quiz))
}

func (api *courseApi) submit(ctx echo.Context) error {
	quiz, _, err := api.getAccessibleQuiz(ctx)
	if err != nil {
		return err
	}

	var data course.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sub, err := api.courseSvc.Submit(quiz.ID, claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "submitting quiz")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *courseApi) querySubmissions(ctx echo.Context) error {
	quiz, isStaff, err := api.getAccessibleQuiz(ctx)
	if err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	studentID := claims.Subject
	if isStaff {
		studentID = ""
	}

	subs, err := api.courseSvc.QuerySubmissions(quiz.ID, studentID)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []course.QuizSubmission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}
