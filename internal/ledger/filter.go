// Package ledger holds the pure parts of the action-history ledger: the
// filter model shared by the server query and the client cache, and the
// input error taxonomy.
package ledger

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/finlog/backend/internal/models"
)

// DateRange selects the time window of a history query.
type DateRange string

const (
	RangeDay    DateRange = "day"
	RangeWeek   DateRange = "week"
	RangeMonth  DateRange = "month"
	RangeYear   DateRange = "year"
	RangeCustom DateRange = "custom"
	RangeAll    DateRange = "all"
)

// Valid reports whether r is a known range. The empty range means all.
func (r DateRange) Valid() bool {
	switch r {
	case "", RangeDay, RangeWeek, RangeMonth, RangeYear, RangeCustom, RangeAll:
		return true
	}
	return false
}

const dateLayout = "2006-01-02"

// Filter narrows a history listing. Zero values mean "no restriction".
// Start and End are inclusive and only consulted for RangeCustom.
type Filter struct {
	ActionKind models.ActionKind
	EntityKind models.EntityKind
	DateRange  DateRange
	Start      time.Time
	End        time.Time
}

// ParseFilter builds a Filter from the query-string form used by the HTTP API.
// Dates accept RFC 3339 or YYYY-MM-DD; a date-only end covers the whole day.
func ParseFilter(actionType, entityType, dateRange, startDate, endDate string, loc *time.Location) (Filter, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := Filter{
		ActionKind: models.ActionKind(strings.TrimSpace(actionType)),
		EntityKind: models.EntityKind(strings.TrimSpace(entityType)),
		DateRange:  DateRange(strings.TrimSpace(dateRange)),
	}
	if f.DateRange == RangeCustom {
		if startDate == "" || endDate == "" {
			return Filter{}, fmt.Errorf("%w: startDate and endDate are required", ErrInvalidRange)
		}
		start, _, err := parseDate(startDate, loc)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: startDate: %v", ErrInvalidRange, err)
		}
		end, dateOnly, err := parseDate(endDate, loc)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: endDate: %v", ErrInvalidRange, err)
		}
		if dateOnly {
			end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		f.Start, f.End = start, end
	}
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func parseDate(s string, loc *time.Location) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, false, nil
}

// Validate checks enum membership and the custom range bounds.
func (f Filter) Validate() error {
	if f.ActionKind != "" && !f.ActionKind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidActionKind, f.ActionKind)
	}
	if f.EntityKind != "" && !f.EntityKind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEntityKind, f.EntityKind)
	}
	if !f.DateRange.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDateRange, f.DateRange)
	}
	if f.DateRange == RangeCustom {
		if f.Start.IsZero() || f.End.IsZero() {
			return fmt.Errorf("%w: startDate and endDate are required", ErrInvalidRange)
		}
		if f.Start.After(f.End) {
			return ErrInvalidRange
		}
	}
	return nil
}

// Window resolves the inclusive time bounds for f relative to now. Calendar
// ranges use now's location; weeks start on Monday. ok is false when the
// filter has no time bound.
func (f Filter) Window(now time.Time) (from, to time.Time, ok bool) {
	y, m, d := now.Date()
	loc := now.Location()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch f.DateRange {
	case RangeDay:
		from = dayStart
		to = from.AddDate(0, 0, 1)
	case RangeWeek:
		offset := (int(now.Weekday()) + 6) % 7
		from = dayStart.AddDate(0, 0, -offset)
		to = from.AddDate(0, 0, 7)
	case RangeMonth:
		from = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		to = from.AddDate(0, 1, 0)
	case RangeYear:
		from = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		to = from.AddDate(1, 0, 0)
	case RangeCustom:
		return f.Start, f.End, true
	default:
		return time.Time{}, time.Time{}, false
	}
	return from, to.Add(-time.Nanosecond), true
}

// Match reports whether r passes the filter at instant now.
func (f Filter) Match(r models.ActionRecord, now time.Time) bool {
	if f.ActionKind != "" && r.ActionType != f.ActionKind {
		return false
	}
	if f.EntityKind != "" && r.EntityType != f.EntityKind {
		return false
	}
	if from, to, ok := f.Window(now); ok {
		if r.Timestamp.Before(from) || r.Timestamp.After(to) {
			return false
		}
	}
	return true
}

// Apply returns the matching records in ledger order. The input is not modified.
func (f Filter) Apply(records []models.ActionRecord, now time.Time) []models.ActionRecord {
	out := make([]models.ActionRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r, now) {
			out = append(out, r)
		}
	}
	Sort(out)
	return out
}

// Values encodes f in the query-string form accepted by ParseFilter.
func (f Filter) Values() url.Values {
	v := url.Values{}
	if f.ActionKind != "" {
		v.Set("actionType", string(f.ActionKind))
	}
	if f.EntityKind != "" {
		v.Set("entityType", string(f.EntityKind))
	}
	dr := f.DateRange
	if dr == "" {
		dr = RangeAll
	}
	v.Set("dateRange", string(dr))
	if dr == RangeCustom {
		v.Set("startDate", f.Start.Format(time.RFC3339Nano))
		v.Set("endDate", f.End.Format(time.RFC3339Nano))
	}
	return v
}

// Sort orders records newest first, breaking timestamp ties by descending id.
func Sort(records []models.ActionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.After(records[j].Timestamp)
		}
		return records[i].ID > records[j].ID
	})
}
