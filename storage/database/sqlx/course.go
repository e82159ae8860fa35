package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/course"
)

type (
	courseRow struct {
		ID              string       `db:"id"`
		Code            string       `db:"code"`
		Title           string       `db:"title"`
		Description     string       `db:"description"`
		ApplicationFee  int64        `db:"application_fee"`
		CourseFee       int64        `db:"course_fee"`
		MaxInstallments int          `db:"max_installments"`
		IsPublished     *bool        `db:"is_published"`
		CreatedAt       sql.NullTime `db:"created_at"`
		UpdatedAt       sql.NullTime `db:"updated_at"`
	}

	moduleRow struct {
		ID          string       `db:"id"`
		CourseID    string       `db:"course_id"`
		Title       string       `db:"title"`
		Body        string       `db:"body"`
		Position    int          `db:"position"`
		IsPublished *bool        `db:"is_published"`
		CreatedAt   sql.NullTime `db:"created_at"`
		UpdatedAt   sql.NullTime `db:"updated_at"`
	}

	assignmentRow struct {
		ID           string       `db:"id"`
		ModuleID     string       `db:"module_id"`
		Title        string       `db:"title"`
		Instructions string       `db:"instructions"`
		DueAt        sql.NullTime `db:"due_at"`
		MaxScore     int          `db:"max_score"`
		CreatedAt    sql.NullTime `db:"created_at"`
		UpdatedAt    sql.NullTime `db:"updated_at"`
	}

	quizRow struct {
		ID        string       `db:"id"`
		ModuleID  string       `db:"module_id"`
		Title     string       `db:"title"`
		CreatedAt sql.NullTime `db:"created_at"`
		UpdatedAt sql.NullTime `db:"updated_at"`
	}

	questionRow struct {
		ID       string         `db:"id"`
		QuizID   string         `db:"quiz_id"`
		Position int            `db:"position"`
		Prompt   string         `db:"prompt"`
		Choices  pq.StringArray `db:"choices"`
		Correct  int            `db:"correct"`
	}

	submissionRow struct {
		ID          string        `db:"id"`
		QuizID      string        `db:"quiz_id"`
		StudentID   string        `db:"student_id"`
		Answers     pq.Int64Array `db:"answers"`
		Score       int           `db:"score"`
		MaxScore    int           `db:"max_score"`
		SubmittedAt sql.NullTime  `db:"submitted_at"`
	}
)

type courseRepository struct {
	repository
	db core.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db core.DB) *courseRepository {
	return &courseRepository{repository{exec: db}, db}
}

func (repo courseRepository) fromRow(row courseRow) course.Course {
	return course.Course{
		ID:              row.ID,
		Code:            row.Code,
		Title:           row.Title,
		Description:     row.Description,
		ApplicationFee:  row.ApplicationFee,
		CourseFee:       row.CourseFee,
		MaxInstallments: row.MaxInstallments,
		IsPublished:     row.IsPublished,
		CreatedAt:       row.CreatedAt.Time,
		UpdatedAt:       row.UpdatedAt.Time,
	}
}

func (repo courseRepository) fromModuleRow(row moduleRow) course.Module {
	return course.Module{
		ID:          row.ID,
		CourseID:    row.CourseID,
		Title:       row.Title,
		Body:        row.Body,
		Position:    row.Position,
		IsPublished: row.IsPublished,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

func (repo courseRepository) fromQuestionRow(row questionRow) course.Question {
	return course.Question{
		ID:       row.ID,
		QuizID:   row.QuizID,
		Position: row.Position,
		Prompt:   row.Prompt,
		Choices:  row.Choices,
		Correct:  row.Correct,
	}
}

// trapNoRowsErr maps psql "no rows" err to the given sentinel
func (repo courseRepository) trapNoRowsErr(err, sentinel error, msg string) error {
	if err == sql.ErrNoRows {
		return sentinel
	}
	return errors.Wrap(err, msg)
}

func (repo courseRepository) CheckCodeUniqueness(ctx context.Context, code string, excludedCourses []course.Course, exec ...core.DBExecutor) error {
	ids := make([]string, 0, len(excludedCourses))
	for _, crs := range excludedCourses {
		ids = append(ids, crs.ID)
	}

	var exists bool
	err := repo.getExec(exec).QueryRowxContext(
		ctx,
		"SELECT EXISTS(SELECT 1 FROM course WHERE code = $1 AND id <> ALL($2))",
		code, pq.Array(ids),
	).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "checking course uniqueness")
	}
	if exists {
		return course.ErrCodeExists
	}
	return nil
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	crs.ID = uuid.New().String()
	row := courseRow{
		ID:              crs.ID,
		Code:            crs.Code,
		Title:           crs.Title,
		Description:     crs.Description,
		ApplicationFee:  crs.ApplicationFee,
		CourseFee:       crs.CourseFee,
		MaxInstallments: crs.MaxInstallments,
		IsPublished:     crs.IsPublished,
		CreatedAt:       nullTime(crs.CreatedAt),
		UpdatedAt:       nullTime(crs.UpdatedAt),
	}
	_, err := repo.getExec(exec).NamedExecContext(
		ctx,
		`INSERT INTO course (id, code, title, description, application_fee, course_fee, max_installments, is_published, created_at, updated_at)
		VALUES (:id, :code, :title, :description, :application_fee, :course_fee, :max_installments, :is_published, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	var qb queryBuilder

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			qb.where("(code ILIKE %[1]s OR title ILIKE %[1]s OR description ILIKE %[1]s)", val)
		}
		if filter.PublishedOnly {
			qb.conds = append(qb.conds, "is_published = true")
		}
	}

	var rows []courseRow
	query := qb.build("SELECT * FROM course", ordering)
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, qb.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}

	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, repo.fromRow(row))
	}
	return courses, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, filter course.GetFilter, exec ...core.DBExecutor) (course.Course, error) {
	var qb queryBuilder

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return course.Course{}, course.ErrNotFound
		}
		qb.where("id = %s", filter.ID)
	case filter.Code != "":
		qb.where("code = %s", filter.Code)
	default:
		return course.Course{}, course.ErrNotFound
	}

	var row courseRow
	query := qb.build("SELECT * FROM course", nil)
	if err := repo.getExec(exec).GetContext(ctx, &row, query, qb.args...); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, course.ErrNotFound, "finding course")
	}
	return repo.fromRow(row), nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	var qb queryBuilder
	var sets []string

	set := func(col string, val interface{}) {
		sets = append(sets, col+" = "+qb.arg(val))
	}
	if crs.Code != "" {
		set("code", crs.Code)
	}
	if crs.Title != "" {
		set("title", crs.Title)
	}
	set("description", crs.Description)
	set("application_fee", crs.ApplicationFee)
	set("course_fee", crs.CourseFee)
	set("max_installments", crs.MaxInstallments)
	if crs.IsPublished != nil {
		set("is_published", *crs.IsPublished)
	}
	if !crs.UpdatedAt.IsZero() {
		set("updated_at", crs.UpdatedAt.UTC())
	}

	var row courseRow
	query := "UPDATE course SET " + strings.Join(sets, ", ") + " WHERE id = " + qb.arg(crs.ID) + " RETURNING *"
	if err := repo.getExec(exec).GetContext(ctx, &row, query, qb.args...); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, course.ErrNotFound, "updating course")
	}
	return repo.fromRow(row), nil
}

func (repo courseRepository) DeleteCoursesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM course WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting courses")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting courses")
	}
	return int(cnt), nil
}

func (repo courseRepository) CreateModule(ctx context.Context, mod course.Module, exec ...core.DBExecutor) (course.Module, error) {
	mod.ID = uuid.New().String()
	row := moduleRow{
		ID:          mod.ID,
		CourseID:    mod.CourseID,
		Title:       mod.Title,
		Body:        mod.Body,
		Position:    mod.Position,
		IsPublished: mod.IsPublished,
		CreatedAt:   nullTime(mod.CreatedAt),
		UpdatedAt:   nullTime(mod.UpdatedAt),
	}
	_, err := repo.getExec(exec).NamedExecContext(
		ctx,
		`INSERT INTO course_module (id, course_id, title, body, position, is_published, created_at, updated_at)
		VALUES (:id, :course_id, :title, :body, :position, :is_published, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return course.Module{}, errors.Wrap(err, "inserting module")
	}
	return mod, nil
}

func (repo courseRepository) QueryModules(ctx context.Context, courseID string, publishedOnly bool, exec ...core.DBExecutor) ([]course.Module, error) {
	var qb queryBuilder
	qb.where("course_id = %s", courseID)
	if publishedOnly {
		qb.conds = append(qb.conds, "is_published = true")
	}

	var rows []moduleRow
	query := qb.build("SELECT * FROM course_module", nil) + " ORDER BY position"
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, qb.args...); err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}

	modules := make([]course.Module, 0, len(rows))
	for _, row := range rows {
		modules = append(modules, repo.fromModuleRow(row))
	}
	return modules, nil
}

func (repo courseRepository) GetModule(ctx context.Context, id string, exec ...core.DBExecutor) (course.Module, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Module{}, course.ErrModuleNotFound
	}

	var row moduleRow
	err := repo.getExec(exec).GetContext(ctx, &row, "SELECT * FROM course_module WHERE id = $1", id)
	if err != nil {
		return course.Module{}, repo.trapNoRowsErr(err, course.ErrModuleNotFound, "finding module")
	}
	return repo.fromModuleRow(row), nil
}

func (repo courseRepository) UpdateModule(ctx context.Context, mod course.Module, exec ...core.DBExecutor) (course.Module, error) {
	var qb queryBuilder
	var sets []string

	set := func(col string, val interface{}) {
		sets = append(sets, col+" = "+qb.arg(val))
	}
	if mod.Title != "" {
		set("title", mod.Title)
	}
	set("body", mod.Body)
	set("position", mod.Position)
	if mod.IsPublished != nil {
		set("is_published", *mod.IsPublished)
	}
	if !mod.UpdatedAt.IsZero() {
		set("updated_at", mod.UpdatedAt.UTC())
	}

	var row moduleRow
	query := "UPDATE course_module SET " + strings.Join(sets, ", ") + " WHERE id = " + qb.arg(mod.ID) + " RETURNING *"
	if err := repo.getExec(exec).GetContext(ctx, &row, query, qb.args...); err != nil {
		return course.Module{}, repo.trapNoRowsErr(err, course.ErrModuleNotFound, "updating module")
	}
	return repo.fromModuleRow(row), nil
}

func (repo courseRepository) DeleteModulesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM course_module WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting modules")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting modules")
	}
	return int(cnt), nil
}

func (repo courseRepository) CreateAssignment(ctx context.Context, asg course.Assignment, exec ...core.DBExecutor) (course.Assignment, error) {
	asg.ID = uuid.New().String()
	row := assignmentRow{
		ID:           asg.ID,
		ModuleID:     asg.ModuleID,
		Title:        asg.Title,
		Instructions: asg.Instructions,
		DueAt:        nullTime(asg.DueAt),
		MaxScore:     asg.MaxScore,
		CreatedAt:    nullTime(asg.CreatedAt),
		UpdatedAt:    nullTime(asg.UpdatedAt),
	}
	_, err := repo.getExec(exec).NamedExecContext(
		ctx,
		`INSERT INTO assignment (id, module_id, title, instructions, due_at, max_score, created_at, updated_at)
		VALUES (:id, :module_id, :title, :instructions, :due_at, :max_score, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return course.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return asg, nil
}

func (repo courseRepository) QueryAssignments(ctx context.Context, moduleID string, exec ...core.DBExecutor) ([]course.Assignment, error) {
	var rows []assignmentRow
	err := repo.getExec(exec).SelectContext(
		ctx, &rows, "SELECT * FROM assignment WHERE module_id = $1 ORDER BY due_at", moduleID)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}

	asgs := make([]course.Assignment, 0, len(rows))
	for _, row := range rows {
		asgs = append(asgs, course.Assignment{
			ID:           row.ID,
			ModuleID:     row.ModuleID,
			Title:        row.Title,
			Instructions: row.Instructions,
			DueAt:        row.DueAt.Time,
			MaxScore:     row.MaxScore,
			CreatedAt:    row.CreatedAt.Time,
			UpdatedAt:    row.UpdatedAt.Time,
		})
	}
	return asgs, nil
}

func (repo courseRepository) CreateQuiz(ctx context.Context, quiz course.Quiz, exec ...core.DBExecutor) (course.Quiz, error) {
	quiz.ID = uuid.New().String()
	for i := range quiz.Questions {
		quiz.Questions[i].ID = uuid.New().String()
		quiz.Questions[i].QuizID = quiz.ID
	}

	insert := func(exe core.DBExecutor) error {
		_, err := exe.NamedExecContext(
			ctx,
			`INSERT INTO quiz (id, module_id, title, created_at, updated_at)
			VALUES (:id, :module_id, :title, :created_at, :updated_at)`,
			quizRow{
				ID:        quiz.ID,
				ModuleID:  quiz.ModuleID,
				Title:     quiz.Title,
				CreatedAt: nullTime(quiz.CreatedAt),
				UpdatedAt: nullTime(quiz.UpdatedAt),
			},
		)
		if err != nil {
			return errors.Wrap(err, "inserting quiz")
		}
		for _, q := range quiz.Questions {
			_, err = exe.NamedExecContext(
				ctx,
				`INSERT INTO quiz_question (id, quiz_id, position, prompt, choices, correct)
				VALUES (:id, :quiz_id, :position, :prompt, :choices, :correct)`,
				questionRow{
					ID:       q.ID,
					QuizID:   q.QuizID,
					Position: q.Position,
					Prompt:   q.Prompt,
					Choices:  q.Choices,
					Correct:  q.Correct,
				},
			)
			if err != nil {
				return errors.Wrap(err, "inserting question")
			}
		}
		return nil
	}

	// run in the caller's transaction when one is provided; otherwise open our own
	if len(exec) > 0 {
		if err := insert(exec[0]); err != nil {
			return course.Quiz{}, err
		}
		return quiz, nil
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return course.Quiz{}, errors.Wrap(err, "beginning transaction")
	}
	if err = insert(tx); err != nil {
		_ = tx.Rollback()
		return course.Quiz{}, err
	}
	if err = tx.Commit(); err != nil {
		return course.Quiz{}, errors.Wrap(err, "committing transaction")
	}
	return quiz, nil
}

func (repo courseRepository) GetQuiz(ctx context.Context, id string, exec ...core.DBExecutor) (course.Quiz, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Quiz{}, course.ErrQuizNotFound
	}
	exe := repo.getExec(exec)

	var row quizRow
	if err := exe.GetContext(ctx, &row, "SELECT * FROM quiz WHERE id = $1", id); err != nil {
		return course.Quiz{}, repo.trapNoRowsErr(err, course.ErrQuizNotFound, "finding quiz")
	}

	var qRows []questionRow
	err := exe.SelectContext(ctx, &qRows, "SELECT * FROM quiz_question WHERE quiz_id = $1 ORDER BY position", id)
	if err != nil {
		return course.Quiz{}, errors.Wrap(err, "querying questions")
	}

	quiz := course.Quiz{
		ID:        row.ID,
		ModuleID:  row.ModuleID,
		Title:     row.Title,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
	for _, q := range qRows {
		quiz.Questions = append(quiz.Questions, repo.fromQuestionRow(q))
	}
	return quiz, nil
}

func (repo courseRepository) QueryQuizzes(ctx context.Context, moduleID string, exec ...core.DBExecutor) ([]course.Quiz, error) {
	exe := repo.getExec(exec)

	var rows []quizRow
	err := exe.SelectContext(ctx, &rows, "SELECT * FROM quiz WHERE module_id = $1 ORDER BY created_at", moduleID)
	if err != nil {
		return nil, errors.Wrap(err, "querying quizzes")
	}

	var qRows []questionRow
	err = exe.SelectContext(
		ctx, &qRows,
		`SELECT * FROM quiz_question
		WHERE quiz_id IN (SELECT id FROM quiz WHERE module_id = $1) ORDER BY position`,
		moduleID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}

	byQuiz := make(map[string][]course.Question, len(rows))
	for _, q := range qRows {
		byQuiz[q.QuizID] = append(byQuiz[q.QuizID], repo.fromQuestionRow(q))
	}

	quizzes := make([]course.Quiz, 0, len(rows))
	for _, row := range rows {
		quizzes = append(quizzes, course.Quiz{
			ID:        row.ID,
			ModuleID:  row.ModuleID,
			Title:     row.Title,
			Questions: byQuiz[row.ID],
			CreatedAt: row.CreatedAt.Time,
			UpdatedAt: row.UpdatedAt.Time,
		})
	}
	return quizzes, nil
}

func (repo courseRepository) CreateSubmission(ctx context.Context, sub course.QuizSubmission, exec ...core.DBExecutor) (course.QuizSubmission, error) {
	sub.ID = uuid.New().String()
	answers := make(pq.Int64Array, 0, len(sub.Answers))
	for _, ans := range sub.Answers {
		answers = append(answers, int64(ans))
	}
	row := submissionRow{
		ID:          sub.ID,
		QuizID:      sub.QuizID,
		StudentID:   sub.StudentID,
		Answers:     answers,
		Score:       sub.Score,
		MaxScore:    sub.MaxScore,
		SubmittedAt: nullTime(sub.SubmittedAt),
	}
	_, err := repo.getExec(exec).NamedExecContext(
		ctx,
		`INSERT INTO quiz_submission (id, quiz_id, student_id, answers, score, max_score, submitted_at)
		VALUES (:id, :quiz_id, :student_id, :answers, :score, :max_score, :submitted_at)`,
		row,
	)
	if err != nil {
		return course.QuizSubmission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo courseRepository) QuerySubmissions(ctx context.Context, quizID, studentID string, exec ...core.DBExecutor) ([]course.QuizSubmission, error) {
	var qb queryBuilder
	if quizID != "" {
		qb.where("quiz_id = %s", quizID)
	}
	if studentID != "" {
		qb.where("student_id = %s", studentID)
	}

	var rows []submissionRow
	query := qb.build("SELECT * FROM quiz_submission", nil) + " ORDER BY submitted_at"
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query, qb.args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	subs := make([]course.QuizSubmission, 0, len(rows))
	for _, row := range rows {
		answers := make([]int, 0, len(row.Answers))
		for _, ans := range row.Answers {
			answers = append(answers, int(ans))
		}
		subs = append(subs, course.QuizSubmission{
			ID:          row.ID,
			QuizID:      row.QuizID,
			StudentID:   row.StudentID,
			Answers:     answers,
			Score:       row.Score,
			MaxScore:    row.MaxScore,
			SubmittedAt: row.SubmittedAt.Time,
		})
	}
	return subs, nil
}
