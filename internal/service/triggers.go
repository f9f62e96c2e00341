package service

import (
	"errors"
	"fmt"

	"github.com/tazhate/familyreminders/internal/planner"
)

// errRescheduled marks an item that another caller edited, rescheduled or
// deleted while its triggers were being rebuilt.
var errRescheduled = errors.New("changed while rescheduling")

// addReport folds one item's scheduling outcome into total and reports
// whether a new plan was submitted. An error that did not come from the
// report (invalid item, failed cancel of the previous triggers) counts the
// item as failed.
func addReport(total *planner.Report, id string, report planner.Report, err error) bool {
	total.Scheduled += report.Scheduled
	total.Skipped += report.Skipped
	total.Failed += report.Failed
	total.Errors = append(total.Errors, report.Errors...)
	if err != nil && len(report.Errors) == 0 {
		total.Failed++
		total.Errors = append(total.Errors, fmt.Errorf("%s: %w", id, err))
		return false
	}
	return true
}
