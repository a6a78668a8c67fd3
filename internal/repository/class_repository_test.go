package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyarthi-labs/school-admin-api/internal/models"
)

func TestClassRepositoryFindByNumberAndBranch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "section", "branch", "class_teacher_id", "created_at", "updated_at"}).
		AddRow("c8", "Class 8", "A", "Main", nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, section, branch, class_teacher_id, created_at, updated_at FROM classes WHERE name LIKE $1 AND branch = $2 ORDER BY created_at, id LIMIT 1")).
		WithArgs("%8%", "Main").
		WillReturnRows(rows)

	class, err := repo.FindByNumberAndBranch(context.Background(), 8, models.BranchMain)
	require.NoError(t, err)
	assert.Equal(t, "c8", class.ID)
	assert.Equal(t, models.BranchMain, class.Branch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryFindByNumberAndBranchNoMatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery("SELECT .+ FROM classes WHERE name LIKE").
		WithArgs("%11%", "Main").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByNumberAndBranch(context.Background(), 11, models.BranchMain)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryExistsByNameSectionBranchNullSection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM classes WHERE name = $1 AND branch = $2 AND (section IS NULL OR section = '') LIMIT 1")).
		WithArgs("LKG", "Ugar").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err := repo.ExistsByNameSectionBranch(context.Background(), "LKG", nil, models.BranchUgar)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryExistsByNameSectionBranchWithSection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	sec := "A"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM classes WHERE name = $1 AND branch = $2 AND section = $3 LIMIT 1")).
		WithArgs("Class 7", "Main", "A").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsByNameSectionBranch(context.Background(), "Class 7", &sec, models.BranchMain)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryCreateAndDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec("INSERT INTO classes").
		WillReturnResult(sqlmock.NewResult(1, 1))

	class := &models.Class{Name: "Class 7", Branch: models.BranchMain}
	require.NoError(t, repo.Create(context.Background(), class))
	assert.NotEmpty(t, class.ID)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM classes WHERE id = $1")).
		WithArgs(class.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), class.ID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryCountStudents(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE role = $1 AND current_class_id = $2")).
		WithArgs("STUDENT", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(24))

	count, err := repo.CountStudents(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 24, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
