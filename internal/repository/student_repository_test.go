package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudentRepositoryListEnrolledWithClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "student_name", "class_id", "class_name", "class_section", "class_branch"}).
		AddRow("s1", "Asha", "c7", "Class 7", "A", "Main").
		AddRow("s2", "Ravi", "c7", "Class 7", "B", "Main")
	mock.ExpectQuery("SELECT u.id AS student_id").
		WithArgs("STUDENT", "y1").
		WillReturnRows(rows)

	enrollments, err := repo.ListEnrolledWithClass(context.Background(), "y1")
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	assert.Equal(t, "Asha", enrollments[0].StudentName)
	assert.Equal(t, "c7", enrollments[0].ClassID)
	require.NotNil(t, enrollments[0].ClassSection)
	assert.Equal(t, "A", *enrollments[0].ClassSection)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	classID := "c8"
	mock.ExpectExec("UPDATE users SET current_class_id").
		WithArgs("s1", &classID, "y2", sqlmock.AnyArg(), "STUDENT").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateEnrollment(context.Background(), "s1", &classID, "y2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateEnrollmentUnassign(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE users SET current_class_id").
		WithArgs("s1", nil, "y2", sqlmock.AnyArg(), "STUDENT").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateEnrollment(context.Background(), "s1", nil, "y2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateEnrollmentMissingStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE users SET current_class_id").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateEnrollment(context.Background(), "ghost", nil, "y2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
	assert.NoError(t, mock.ExpectationsWereMet())
}
