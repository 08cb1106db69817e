/*
calendar.go - Calendar exclusion resolution (chargeable day counting)

PURPOSE:
  Turns a raw inclusive date range into a count of chargeable working days,
  given the exclusion rules in effect: non-working weekdays, global bank
  holidays, organization holidays, and custom excluded dates.

CLASSIFICATION ORDER:
  Each day in [start, end] is tested in order:
    1. non-working day (outside the organization's working-day set)
    2. global bank holiday (New Year's Day, Christmas Day, Boxing Day)
    3. organization holiday (recurring compares month+day only)
    4. custom excluded date (always excluded, regardless of flags)
  The excluded set is a union, so the order only decides which reason labels
  a day that matches several rules.

YEAR HANDLING:
  Bank holidays are resolved against the year of the day under test, so a
  range spanning Dec 31/Jan 1 excludes both years' holidays. (Resolving them
  once from "the current year" misses the far side of the boundary.)

PURITY:
  No side effects. Identical inputs produce identical output, any number
  of times.

SEE ALSO:
  - lifecycle.go: calls ResolveExclusions at submission time; the resulting
    chargeable count is stored on the request and never recomputed
*/
package leave

import "time"

// =============================================================================
// OPTIONS AND RESULT
// =============================================================================

// ExclusionOptions selects which exclusion rules apply to a resolution.
type ExclusionOptions struct {
	// ExcludeNonWorkingDays removes days outside WorkingDays from the count.
	ExcludeNonWorkingDays bool

	// ExcludeHolidays removes global bank holidays and organization holidays.
	ExcludeHolidays bool

	// CustomExcludedDates are always removed, regardless of the two flags.
	CustomExcludedDates []Date

	// WorkingDays is the organization's working-day set. Nil means the
	// Monday-Friday default.
	WorkingDays WorkingDays
}

// ExclusionReason labels why a day was excluded.
type ExclusionReason string

const (
	ExcludedNonWorkingDay   ExclusionReason = "non_working_day"
	ExcludedBankHoliday     ExclusionReason = "bank_holiday"
	ExcludedCompanyHoliday  ExclusionReason = "company_holiday"
	ExcludedCustom          ExclusionReason = "custom"
)

// ExcludedDate is a single excluded day with its diagnostic label.
type ExcludedDate struct {
	Date   Date
	Reason ExclusionReason
}

// Resolution is the outcome of resolving a range. The invariant
// TotalDays == ChargeableDays + len(Excluded) always holds, and
// TotalDays >= 1 for any valid range.
type Resolution struct {
	TotalDays      int
	ChargeableDays int
	Excluded       []ExcludedDate
}

// ExcludedDates returns just the dates, without labels.
func (r Resolution) ExcludedDates() []Date {
	out := make([]Date, len(r.Excluded))
	for i, e := range r.Excluded {
		out[i] = e.Date
	}
	return out
}

// =============================================================================
// BANK HOLIDAYS
// =============================================================================

// BankHolidays returns the fixed global holiday list for a year:
// New Year's Day, Christmas Day and Boxing Day.
func BankHolidays(year int) []Date {
	return []Date{
		NewDate(year, time.January, 1),
		NewDate(year, time.December, 25),
		NewDate(year, time.December, 26),
	}
}

func isBankHoliday(d Date) bool {
	for _, h := range BankHolidays(d.Year()) {
		if d.Equal(h) {
			return true
		}
	}
	return false
}

// matchesHoliday applies the recurring rule: recurring holidays compare
// month+day ignoring the stored year, fixed holidays compare the exact date.
func matchesHoliday(d Date, h Holiday) bool {
	if h.Recurring {
		return d.SameMonthDay(h.Date)
	}
	return d.Equal(h.Date)
}

// =============================================================================
// RESOLVER
// =============================================================================

// ResolveExclusions enumerates every calendar day in the inclusive range
// [start, end] and classifies it as chargeable or excluded. Pure and
// deterministic; safe for unlimited concurrency.
func ResolveExclusions(start, end Date, opts ExclusionOptions, orgHolidays []Holiday) (Resolution, error) {
	if start.IsZero() || end.IsZero() {
		return Resolution{}, &ValidationError{Field: "dates", Message: "start and end dates are required"}
	}
	if start.After(end) {
		return Resolution{}, &ValidationError{Field: "dates", Message: "start date must not be after end date"}
	}

	workdays := opts.WorkingDays
	if workdays == nil {
		workdays = DefaultWorkingDays()
	}

	res := Resolution{TotalDays: DaysInclusive(start, end)}

	for day := start; day.BeforeOrEqual(end); day = day.AddDays(1) {
		if reason, excluded := classify(day, opts, workdays, orgHolidays); excluded {
			res.Excluded = append(res.Excluded, ExcludedDate{Date: day, Reason: reason})
		}
	}

	res.ChargeableDays = res.TotalDays - len(res.Excluded)
	return res, nil
}

func classify(day Date, opts ExclusionOptions, workdays WorkingDays, orgHolidays []Holiday) (ExclusionReason, bool) {
	if opts.ExcludeNonWorkingDays && !workdays.Contains(day.Weekday()) {
		return ExcludedNonWorkingDay, true
	}

	if opts.ExcludeHolidays {
		if isBankHoliday(day) {
			return ExcludedBankHoliday, true
		}
		for _, h := range orgHolidays {
			if matchesHoliday(day, h) {
				return ExcludedCompanyHoliday, true
			}
		}
	}

	for _, custom := range opts.CustomExcludedDates {
		if day.Equal(custom) {
			return ExcludedCustom, true
		}
	}

	return "", false
}
