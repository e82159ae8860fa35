package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/mafunzo/core"
	"github.com/trezcool/mafunzo/core/registration"
)

type registrationRepository struct {
	db *DB
}

var _ registration.Repository = (*registrationRepository)(nil)

func NewRegistrationRepository(db *DB) *registrationRepository {
	return &registrationRepository{db: db}
}

func (repo *registrationRepository) query() []registration.Registration {
	regs := make([]registration.Registration, 0, len(repo.db.registration))
	for _, reg := range repo.db.registration {
		regs = append(regs, *reg)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].AppliedAt.Before(regs[j].AppliedAt) })
	return regs
}

func (repo *registrationRepository) CreateRegistration(ctx context.Context, reg registration.Registration, exec ...core.DBExecutor) (registration.Registration, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	reg.ID = uuid.New().String()
	repo.db.registration[reg.ID] = &reg
	return reg, nil
}

func (repo *registrationRepository) QueryRegistrations(ctx context.Context, filter *registration.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]registration.Registration, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	regs := repo.query()
	if filter == nil || filter.IsEmpty() {
		return regs, nil
	}

	matches := make([]registration.Registration, 0, len(regs))
	for _, reg := range regs {
		if filter.StudentID != "" && reg.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && reg.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && reg.Status != filter.Status {
			continue
		}
		matches = append(matches, reg)
	}
	return matches, nil
}

func (repo *registrationRepository) GetRegistration(ctx context.Context, id string, exec ...core.DBExecutor) (registration.Registration, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if reg, ok := repo.db.registration[id]; ok {
		return *reg, nil
	}
	return registration.Registration{}, registration.ErrNotFound
}

func (repo *registrationRepository) GetLiveRegistration(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (registration.Registration, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, reg := range repo.query() {
		if reg.StudentID == studentID && reg.CourseID == courseID && reg.IsLive() {
			return reg, nil
		}
	}
	return registration.Registration{}, registration.ErrNotFound
}

func (repo *registrationRepository) UpdateRegistration(ctx context.Context, reg registration.Registration, exec ...core.DBExecutor) (registration.Registration, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.registration[reg.ID]
	if !ok {
		return registration.Registration{}, registration.ErrNotFound
	}
	if reg.Status != "" {
		orig.Status = reg.Status
	}
	orig.Note = reg.Note
	if !reg.DecidedAt.IsZero() {
		orig.DecidedAt = reg.DecidedAt
	}
	if !reg.UpdatedAt.IsZero() {
		orig.UpdatedAt = reg.UpdatedAt
	}
	return *orig, nil
}
