package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"
)

// RRule renders the cadence and cutoff as an RFC 5545 RRULE value such as
// "FREQ=WEEKLY;INTERVAL=2;UNTIL=20240401T000000Z", reading calendar fields in UTC.
func RRule(cadence Cadence, dtstart, cutoff time.Time) (string, error) {
	return NewEngine(nil).RRule(cadence, dtstart, cutoff)
}

// RRule renders the rule with BYMONTHDAY and BYMONTH taken from dtstart in the
// engine's location, so it names the same calendar days Expand produces.
func (e *Engine) RRule(cadence Cadence, dtstart, cutoff time.Time) (string, error) {
	opt, err := ruleOption(cadence, dtstart.In(e.Location()), cutoff)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// ruleOption maps a cadence onto rrule options in dtstart's location. UNTIL is
// inclusive in RFC 5545, so it sits one second before the exclusive cutoff.
// Month-end clamping is expressed with BYMONTHDAY=d,-1;BYSETPOS=1.
func ruleOption(cadence Cadence, dtstart, cutoff time.Time) (rrule.ROption, error) {
	opt := rrule.ROption{
		Dtstart:  dtstart,
		Interval: 1,
	}
	if !cutoff.IsZero() {
		opt.Until = cutoff.UTC().Add(-time.Second)
	}

	day := dtstart.Day()
	switch cadence {
	case CadenceDaily:
		opt.Freq = rrule.DAILY
	case CadenceWeekly:
		opt.Freq = rrule.WEEKLY
	case CadenceFortnightly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	case CadenceMonthly:
		opt.Freq = rrule.MONTHLY
		if day > 28 {
			opt.Bymonthday = []int{day, -1}
			opt.Bysetpos = []int{1}
		}
	case CadenceYearly:
		opt.Freq = rrule.YEARLY
		if dtstart.Month() == time.February && day == 29 {
			opt.Bymonth = []int{2}
			opt.Bymonthday = []int{29, -1}
			opt.Bysetpos = []int{1}
		}
	default:
		return rrule.ROption{}, ErrUnsupportedCadence
	}
	return opt, nil
}
