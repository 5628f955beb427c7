package dwqar

import (
	"math"
	"time"
)

// AlertLevel grades how close a submission deadline is.
type AlertLevel string

const (
	AlertNone    AlertLevel = "none"
	AlertNotice  AlertLevel = "notice"  // 90 days
	AlertWarning AlertLevel = "warning" // 30 days
	AlertUrgent  AlertLevel = "urgent"  // 14 days
	AlertFinal   AlertLevel = "final"   // 7 days through the due date
	AlertOverdue AlertLevel = "overdue"
)

// DeadlineStatus describes the submission countdown for a period.
type DeadlineStatus struct {
	Period        ReportingPeriod `json:"reporting_period"`
	DueDate       time.Time       `json:"due_date"`
	DaysRemaining int             `json:"days_remaining"`
	Level         AlertLevel      `json:"alert_level"`
}

// SubmissionDeadline returns the due date for a period. Annual reports are due
// 31 July of the following year; quarterly summaries by the last day of the
// month after the quarter closes.
func SubmissionDeadline(p ReportingPeriod) time.Time {
	if p.IsAnnual() {
		return time.Date(p.Year+1, time.July, 31, 0, 0, 0, 0, time.UTC)
	}
	end := p.Range().End
	return time.Date(end.Year(), end.Month()+2, 0, 0, 0, 0, 0, time.UTC)
}

// Deadline computes the countdown for p as of now.
func Deadline(p ReportingPeriod, now time.Time) DeadlineStatus {
	due := SubmissionDeadline(p)
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(math.Round(due.Sub(today).Hours() / 24))

	return DeadlineStatus{
		Period:        p,
		DueDate:       due,
		DaysRemaining: days,
		Level:         alertLevelFor(days),
	}
}

func alertLevelFor(days int) AlertLevel {
	switch {
	case days < 0:
		return AlertOverdue
	case days <= 7:
		return AlertFinal
	case days <= 14:
		return AlertUrgent
	case days <= 30:
		return AlertWarning
	case days <= 90:
		return AlertNotice
	default:
		return AlertNone
	}
}
