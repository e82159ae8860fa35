package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) query() []course.Course {
	courses := make([]course.Course, 0, len(repo.db.course))
	for _, crs := range repo.db.course {
		courses = append(courses, *crs)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	return courses
}

func (repo *courseRepository) CheckCodeUniqueness(ctx context.Context, code string, excludedCourses []course.Course, exec ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]bool, len(excludedCourses))
	for _, crs := range excludedCourses {
		excluded[crs.ID] = true
	}

	for _, crs := range repo.query() {
		if crs.Code == code && !excluded[crs.ID] {
			return course.ErrCodeExists
		}
	}
	return nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	crs.ID = uuid.New().String()
	repo.db.course[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := repo.query()
	if filter == nil {
		return courses, nil
	}

	matches := make([]course.Course, 0, len(courses))
	for _, crs := range courses {
		if filter.Search != "" {
			kw := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(crs.Code), kw) &&
				!strings.Contains(strings.ToLower(crs.Title), kw) &&
				!strings.Contains(strings.ToLower(crs.Description), kw) {
				continue
			}
		}
		if filter.PublishedOnly && !crs.Published() {
			continue
		}
		matches = append(matches, crs)
	}
	return matches, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, filter course.GetFilter, exec ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if crs, ok := repo.db.course[filter.ID]; ok {
			return *crs, nil
		}
		return course.Course{}, course.ErrNotFound
	}
	if filter.Code != "" {
		for _, crs := range repo.query() {
			if crs.Code == filter.Code {
				return crs, nil
			}
		}
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.course[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	if crs.Code != "" {
		orig.Code = crs.Code
	}
	if crs.Title != "" {
		orig.Title = crs.Title
	}
	orig.Description = crs.Description
	orig.ApplicationFee = crs.ApplicationFee
	orig.CourseFee = crs.CourseFee
	orig.MaxInstallments = crs.MaxInstallments
	if crs.IsPublished != nil {
		orig.IsPublished = crs.IsPublished
	}
	if !crs.UpdatedAt.IsZero() {
		orig.UpdatedAt = crs.UpdatedAt
	}
	return *orig, nil
}

func (repo *courseRepository) DeleteCoursesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.course[id]; ok {
			delete(repo.db.course, id)
			cnt++
		}
	}
	return cnt, nil
}

func (repo *courseRepository) CreateModule(ctx context.Context, mod course.Module, exec ...core.DBExecutor) (course.Module, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	mod.ID = uuid.New().String()
	repo.db.module[mod.ID] = &mod
	return mod, nil
}

func (repo *courseRepository) QueryModules(ctx context.Context, courseID string, publishedOnly bool, exec ...core.DBExecutor) ([]course.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	modules := make([]course.Module, 0, len(repo.db.module))
	for _, mod := range repo.db.module {
		if mod.CourseID != courseID {
			continue
		}
		if publishedOnly && !mod.Published() {
			continue
		}
		modules = append(modules, *mod)
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Position < modules[j].Position })
	return modules, nil
}

func (repo *courseRepository) GetModule(ctx context.Context, id string, exec ...core.DBExecutor) (course.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if mod, ok := repo.db.module[id]; ok {
		return *mod, nil
	}
	return course.Module{}, course.ErrModuleNotFound
}

func (repo *courseRepository) UpdateModule(ctx context.Context, mod course.Module, exec ...core.DBExecutor) (course.Module, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.module[mod.ID]
	if !ok {
		return course.Module{}, course.ErrModuleNotFound
	}
	if mod.Title != "" {
		orig.Title = mod.Title
	}
	orig.Body = mod.Body
	orig.Position = mod.Position
	if mod.IsPublished != nil {
		orig.IsPublished = mod.IsPublished
	}
	if !mod.UpdatedAt.IsZero() {
		orig.UpdatedAt = mod.UpdatedAt
	}
	return *orig, nil
}

func (repo *courseRepository) DeleteModulesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.module[id]; ok {
			delete(repo.db.module, id)
			cnt++
		}
	}
	return cnt, nil
}

func (repo *courseRepository) CreateAssignment(ctx context.Context, asg course.Assignment, exec ...core.DBExecutor) (course.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	asg.ID = uuid.New().String()
	repo.db.assignment[asg.ID] = &asg
	return asg, nil
}

func (repo *courseRepository) QueryAssignments(ctx context.Context, moduleID string, exec ...core.DBExecutor) ([]course.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	asgs := make([]course.Assignment, 0, len(repo.db.assignment))
	for _, asg := range repo.db.assignment {
		if asg.ModuleID == moduleID {
			asgs = append(asgs, *asg)
		}
	}
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].DueAt.Before(asgs[j].DueAt) })
	return asgs, nil
}

func (repo *courseRepository) CreateQuiz(ctx context.Context, quiz course.Quiz, exec ...core.DBExecutor) (course.Quiz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	quiz.ID = uuid.New().String()
	for i := range quiz.Questions {
		quiz.Questions[i].ID = uuid.New().String()
		quiz.Questions[i].QuizID = quiz.ID
	}
	repo.db.quiz[quiz.ID] = &quiz
	return quiz, nil
}

func (repo *courseRepository) GetQuiz(ctx context.Context, id string, exec ...core.DBExecutor) (course.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if quiz, ok := repo.db.quiz[id]; ok {
		return *quiz, nil
	}
	return course.Quiz{}, course.ErrQuizNotFound
}

func (repo *courseRepository) QueryQuizzes(ctx context.Context, moduleID string, exec ...core.DBExecutor) ([]course.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	quizzes := make([]course.Quiz, 0, len(repo.db.quiz))
	for _, quiz := range repo.db.quiz {
		if quiz.ModuleID == moduleID {
			quizzes = append(quizzes, *quiz)
		}
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].CreatedAt.Before(quizzes[j].CreatedAt) })
	return quizzes, nil
}

func (repo *courseRepository) CreateSubmission(ctx context.Context, sub course.QuizSubmission, exec ...core.DBExecutor) (course.QuizSubmission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sub.ID = uuid.New().String()
	repo.db.submission[sub.ID] = &sub
	return sub, nil
}

func (repo *courseRepository) QuerySubmissions(ctx context.Context, quizID, studentID string, exec ...core.DBExecutor) ([]course.QuizSubmission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := make([]course.QuizSubmission, 0, len(repo.db.submission))
	for _, sub := range repo.db.submission {
		if quizID != "" && sub.QuizID != quizID {
			continue
		}
		if studentID != "" && sub.StudentID != studentID {
			continue
		}
		subs = append(subs, *sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}
