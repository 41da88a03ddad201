package inmemdb

import (
	"context"

	"github.com/trezcool/madrasa/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, u := range repo.db.users {
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	usr.Roles = append([]string{}, usr.Roles...)
	repo.db.users[usr.ID] = usr
	repo.db.wrote(TableUsers)
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsersByID(_ context.Context, ids ...string) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if usr, ok := repo.db.users[id]; ok && !seen[id] {
			users = append(users, usr)
			seen[id] = true
		}
	}
	return users, nil
}

func (repo *userRepository) CreateTeacher(_ context.Context, t user.Teacher) (user.Teacher, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.teachers[t.ID] = t
	repo.db.wrote(TableTeachers)
	return t, nil
}

func (repo *userRepository) GetTeacherByID(_ context.Context, id string) (user.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if t, ok := repo.db.teachers[id]; ok {
		return t, nil
	}
	return user.Teacher{}, user.ErrTeacherNotFound
}
