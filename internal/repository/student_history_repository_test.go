package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyarthi-labs/school-admin-api/internal/models"
)

func TestStudentHistoryRepositoryBulkInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentHistoryRepository(db)

	mock.ExpectExec("INSERT INTO student_histories").
		WillReturnResult(sqlmock.NewResult(0, 2))

	records := []models.StudentHistory{
		{StudentID: "s1", ClassID: "c7", AcademicYearID: "y1"},
		{StudentID: "s2", ClassID: "c7", AcademicYearID: "y1"},
	}
	require.NoError(t, repo.BulkInsert(context.Background(), records))

	// defaults are filled in before the write
	for _, rec := range records {
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, models.ResultPromoted, rec.Result)
		assert.False(t, rec.CreatedAt.IsZero())
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentHistoryRepositoryBulkInsertEmpty(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentHistoryRepository(db)

	require.NoError(t, repo.BulkInsert(context.Background(), nil))
}

func TestStudentHistoryRepositoryBulkInsertDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentHistoryRepository(db)

	mock.ExpectExec("INSERT INTO student_histories").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.BulkInsert(context.Background(), []models.StudentHistory{
		{StudentID: "s1", ClassID: "c7", AcademicYearID: "y1"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateHistory))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentHistoryRepositoryCountByYear(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentHistoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM student_histories WHERE academic_year_id = $1")).
		WithArgs("y1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(120))

	count, err := repo.CountByYear(context.Background(), "y1")
	require.NoError(t, err)
	assert.Equal(t, 120, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentHistoryRepositoryListByYear(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentHistoryRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "academic_year_id", "result", "final_grade", "created_at", "student_name", "student_email", "class_name", "class_section"}).
		AddRow("h1", "s1", "c7", "y1", "Promoted", "", time.Now(), "Asha", "asha@example.com", "Class 7", "A")
	mock.ExpectQuery("SELECT h.id, h.student_id").
		WithArgs("y1").
		WillReturnRows(rows)

	entries, err := repo.ListByYear(context.Background(), "y1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Asha", entries[0].StudentName)
	require.NotNil(t, entries[0].ClassName)
	assert.Equal(t, "Class 7", *entries[0].ClassName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
