package repositories

import (
	"context"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/repositories/user"
	"github.com/smis-school/smis/internal/db"
)

// UserRepository combines the users and students tables.
type UserRepository struct {
	common  *user.Repository
	student *user.StudentRepository
}

func NewUserRepository(conn db.DBTX) *UserRepository {
	return &UserRepository{
		common:  user.NewRepository(conn),
		student: user.NewStudentRepository(conn),
	}
}

// WithTx returns a copy bound to tx.
func (r *UserRepository) WithTx(tx db.DBTX) *UserRepository {
	return NewUserRepository(tx)
}

func (r *UserRepository) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	return r.common.CreateUser(ctx, u)
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.common.GetUserByEmail(ctx, email)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return r.common.GetUserByID(ctx, id)
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.common.EmailExists(ctx, email)
}

func (r *UserRepository) ListUsers(ctx context.Context, f models.UserFilter, offset, limit uint64) ([]models.User, int64, error) {
	return r.common.ListUsers(ctx, f, offset, limit)
}

func (r *UserRepository) UpdateUser(ctx context.Context, u *models.User) error {
	return r.common.UpdateUser(ctx, u)
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id int64, active bool) error {
	return r.common.UpdateStatus(ctx, id, active)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.common.UpdatePassword(ctx, id, hash)
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64) error {
	return r.common.UpdateLastLogin(ctx, id)
}

func (r *UserRepository) DeleteUser(ctx context.Context, id int64) error {
	return r.common.DeleteUser(ctx, id)
}

func (r *UserRepository) CountByRole(ctx context.Context, departmentID *int64) (map[models.RoleType]int64, error) {
	return r.common.CountByRole(ctx, departmentID)
}

func (r *UserRepository) CreateStudent(ctx context.Context, s *models.Student) error {
	return r.student.CreateStudent(ctx, s)
}

func (r *UserRepository) GetStudentByID(ctx context.Context, id int64) (*models.Student, error) {
	return r.student.GetStudentByID(ctx, id)
}

func (r *UserRepository) GetStudentByUserID(ctx context.Context, userID int64) (*models.Student, error) {
	return r.student.GetStudentByUserID(ctx, userID)
}

func (r *UserRepository) StudentNumberExists(ctx context.Context, number string) (bool, error) {
	return r.student.StudentNumberExists(ctx, number)
}

func (r *UserRepository) ListStudents(ctx context.Context, f models.StudentFilter, offset, limit uint64) ([]models.Student, int64, error) {
	return r.student.ListStudents(ctx, f, offset, limit)
}

func (r *UserRepository) ListStudentsByIDs(ctx context.Context, ids []int64) ([]models.Student, error) {
	return r.student.ListByIDs(ctx, ids)
}

func (r *UserRepository) CountStudentsByDepartment(ctx context.Context, departmentID int64) (int64, error) {
	return r.student.CountByDepartment(ctx, departmentID)
}

func (r *UserRepository) AssignStudentsToClass(ctx context.Context, classID int64, studentIDs []int64) error {
	return r.student.AssignClass(ctx, classID, studentIDs)
}
