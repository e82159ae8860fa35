package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/mafunzo/core/billing"
	"github.com/trezcool/mafunzo/core/course"
	"github.com/trezcool/mafunzo/core/registration"
	"github.com/trezcool/mafunzo/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	code, title string,
	applicationFee, courseFee int64,
	maxInstallments int,
	published bool,
) course.Course {
	t.Helper()

	now := time.Now().UTC()
	crs := course.Course{
		Code:            code,
		Title:           title,
		ApplicationFee:  applicationFee,
		CourseFee:       courseFee,
		MaxInstallments: maxInstallments,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	crs.SetPublished(published)
	crs, err := repo.CreateCourse(context.Background(), crs)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateModule(
	t *testing.T,
	repo course.Repository,
	courseID, title string,
	position int,
	published bool,
) course.Module {
	t.Helper()

	now := time.Now().UTC()
	mod := course.Module{
		CourseID:  courseID,
		Title:     title,
		Position:  position,
		CreatedAt: now,
		UpdatedAt: now,
	}
	mod.SetPublished(published)
	mod, err := repo.CreateModule(context.Background(), mod)
	if err != nil {
		t.Fatalf("CreateModule() failed: %v", err)
	}
	return mod
}

func CreateQuiz(
	t *testing.T,
	repo course.Repository,
	moduleID, title string,
	questions ...course.Question,
) course.Quiz {
	t.Helper()

	now := time.Now().UTC()
	quiz := course.Quiz{
		ModuleID:  moduleID,
		Title:     title,
		Questions: questions,
		CreatedAt: now,
		UpdatedAt: now,
	}
	quiz, err := repo.CreateQuiz(context.Background(), quiz)
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	return quiz
}

func CreateRegistration(
	t *testing.T,
	repo registration.Repository,
	studentID, courseID, status string,
) registration.Registration {
	t.Helper()

	now := time.Now().UTC()
	reg := registration.Registration{
		StudentID: studentID,
		CourseID:  courseID,
		Status:    status,
		AppliedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	reg, err := repo.CreateRegistration(context.Background(), reg)
	if err != nil {
		t.Fatalf("CreateRegistration() failed: %v", err)
	}
	return reg
}

func CreatePlan(
	t *testing.T,
	repo billing.Repository,
	registrationID, studentID, courseID string,
	totalFee int64,
	installments int,
	start time.Time,
) billing.InstallmentPlan {
	t.Helper()

	plan := billing.NewPlan(registrationID, studentID, courseID, totalFee, installments, start)
	plan, err := repo.CreatePlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("CreatePlan() failed: %v", err)
	}
	return plan
}

func CreatePayment(
	t *testing.T,
	repo billing.Repository,
	studentID, courseID, planID, kind string,
	amount int64,
	receivedAt time.Time,
) billing.Payment {
	t.Helper()

	pmt := billing.Payment{
		StudentID:  studentID,
		CourseID:   courseID,
		PlanID:     planID,
		Kind:       kind,
		Amount:     amount,
		ReceivedAt: receivedAt.UTC(),
		CreatedAt:  time.Now().UTC(),
	}
	pmt, err := repo.CreatePayment(context.Background(), pmt)
	if err != nil {
		t.Fatalf("CreatePayment() failed: %v", err)
	}
	return pmt
}
