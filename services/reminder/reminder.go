package reminder

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/services/export"
)

const (
	reminderTemplate = "fee_reminder"
	runTimeout       = 10 * time.Minute
)

type (
	DueLine struct {
		Name string
		Due  string
	}

	ReminderData struct {
		StudentName     string
		AdmissionNumber string
		GuardianName    string
		Lines           []DueLine
		TotalDue        string
	}
)

// Reminder emails guardians of students with fees due, on a cron schedule.
type Reminder struct {
	students *student.Service
	fees     *fee.Service
	mailSvc  core.EmailService
	logger   core.Logger
	schedule string
	cron     *cron.Cron
}

func New(conf *core.Config, students *student.Service, fees *fee.Service, mailSvc core.EmailService, logger core.Logger) *Reminder {
	clog := cronLogger{logger: logger}
	return &Reminder{
		students: students,
		fees:     fees,
		mailSvc:  mailSvc,
		logger:   logger,
		schedule: conf.Reminder.Schedule,
		cron:     cron.New(cron.WithLogger(clog), cron.WithChain(cron.SkipIfStillRunning(clog))),
	}
}

// Start schedules the reminders and starts the scheduler in its own goroutine.
func (r *Reminder) Start() error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if n, err := r.RunOnce(ctx); err != nil {
			r.logger.Error(fmt.Sprintf("sending fee reminders: %v", err), err)
		} else {
			r.logger.Info(fmt.Sprintf("%d fee reminder(s) sent", n))
		}
	})
	if err != nil {
		return errors.Wrapf(err, "scheduling fee reminders (%q)", r.schedule)
	}
	r.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to complete.
func (r *Reminder) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce sends a reminder to the guardian of every student with fees due and returns the number sent.
// A failing student is logged and skipped.
func (r *Reminder) RunOnce(ctx context.Context) (int, error) {
	schools, err := r.students.QuerySchools(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "querying schools")
	}

	sent := 0
	for _, schoolID := range schools {
		students, err := r.students.QueryStudents(ctx, schoolID, student.QueryFilter{})
		if err != nil {
			return sent, errors.Wrapf(err, "querying students of %s", schoolID)
		}

		for _, std := range students {
			if err = ctx.Err(); err != nil {
				return sent, err
			}
			if std.GuardianEmail == "" {
				continue
			}

			tenant := core.Tenant{SchoolID: schoolID, StudentID: std.ID}
			stmt, err := r.fees.FeeStatus(ctx, schoolID, std.ID)
			if err != nil {
				r.logger.Error(fmt.Sprintf("computing fee status: %v", err), err, tenant)
				continue
			}
			if !stmt.Totals.Due.IsPositive() {
				continue
			}

			msg, err := NewReminderMessage(stmt)
			if err != nil {
				r.logger.Error(fmt.Sprintf("building fee reminder: %v", err), err, tenant)
				continue
			}
			r.mailSvc.SendMessages(msg)
			sent++
		}
	}
	return sent, nil
}

// NewReminderMessage returns the reminder email of a statement, with the statement attached as a spreadsheet.
func NewReminderMessage(stmt fee.Statement) (*core.EmailMessage, error) {
	std := stmt.Student
	guardian := std.GuardianName
	if guardian == "" {
		guardian = "Parent/Guardian"
	}

	lines := make([]DueLine, 0, len(stmt.Lines))
	for _, l := range stmt.Lines {
		if l.Due.IsPositive() {
			lines = append(lines, DueLine{Name: l.FeeHeadName, Due: l.Due.StringFixed(2)})
		}
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: std.GuardianName, Address: std.GuardianEmail}},
		Subject:      "Fees due for " + std.Name,
		TemplateName: reminderTemplate,
		TemplateData: ReminderData{
			StudentName:     std.Name,
			AdmissionNumber: std.AdmissionNumber,
			GuardianName:    guardian,
			Lines:           lines,
			TotalDue:        stmt.Totals.Due.StringFixed(2),
		},
	}

	var buf bytes.Buffer
	if err := export.FeeStatement(&buf, stmt); err != nil {
		return nil, err
	}
	if err := msg.Attach(&buf, "fee-statement-"+std.AdmissionNumber+".xlsx", export.ContentType); err != nil {
		return nil, err
	}
	return msg, nil
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(fmt.Sprintf("cron: %s %v", msg, keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s %v: %v", msg, keysAndValues, err), err)
}
