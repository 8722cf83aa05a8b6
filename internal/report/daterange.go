package report

import (
	"strconv"
	"strings"
	"time"

	apperrors "github.com/orderline/orders-bff/pkg/util"
)

// CRMDateLayout is the date format the CRM search accepts.
const CRMDateLayout = "01-02-2006"

// DateRange converts a month and year into the first and last day of that month.
func DateRange(month, year string) (string, string, error) {
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil || m < 1 || m > 12 {
		return "", "", apperrors.NewValidationError("month must be between 1 and 12", map[string]any{"field": "month"})
	}
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || y < 1 || y > 9999 {
		return "", "", apperrors.NewValidationError("year must be a four digit year", map[string]any{"field": "year"})
	}
	first := time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format(CRMDateLayout), last.Format(CRMDateLayout), nil
}
