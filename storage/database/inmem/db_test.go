package inmemdb

import (
	"testing"

	"github.com/trezcool/shule/storage/storagetest"
)

func TestRepositories(t *testing.T) {
	db := Open()
	students := NewStudentRepository(db)

	t.Run("students", func(t *testing.T) { storagetest.StudentRepository(t, students) })
	t.Run("fees", func(t *testing.T) { storagetest.FeeRepository(t, students, NewFeeRepository(db)) })
	t.Run("exams", func(t *testing.T) { storagetest.ExamRepository(t, students, NewExamRepository(db)) })
}
