package inmemdb

import (
	"strings"
	"sync"

	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/student"
)

type (
	// DB is a process local store, used by tests and the "memory" storage backend.
	DB struct {
		student *studentTable
		fee     *feeTables
		exam    *examTables
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student // by id
	}

	feeTables struct {
		sync.RWMutex
		heads      map[string]*fee.Head
		structures map[string]*fee.ClassStructure // by schoolID/classID
		payments   []*fee.Payment                 // insertion order
		receiptSeq map[string]int                 // by schoolID/year
	}

	examTables struct {
		sync.RWMutex
		terms     []*exam.Term              // insertion order
		schedules map[string]*exam.Schedule // by schoolID/termID/classID
		marks     map[string]*exam.Marks    // by schoolID/termID/studentID
	}
)

func Open() *DB {
	return &DB{
		student: &studentTable{table: make(map[string]*student.Student)},
		fee: &feeTables{
			heads:      make(map[string]*fee.Head),
			structures: make(map[string]*fee.ClassStructure),
			receiptSeq: make(map[string]int),
		},
		exam: &examTables{
			schedules: make(map[string]*exam.Schedule),
			marks:     make(map[string]*exam.Marks),
		},
	}
}

func compositeKey(parts ...string) string {
	return strings.Join(parts, "/")
}
