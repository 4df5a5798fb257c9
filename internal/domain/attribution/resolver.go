package attribution

import "time"

// Result is the outcome of merging a candidate touch.
type Result struct {
	Record  *Record
	Changed bool
}

// Qualifies reports whether candidate counts as new attribution data.
// Any allow-listed parameter qualifies. A bare external referrer only
// qualifies for a visitor with no record yet.
func Qualifies(candidate Touch, existing *Record) bool {
	if candidate.HasCaptureParams() {
		return true
	}
	return candidate.Referrer() != "" && existing == nil
}

// Resolve merges candidate into existing. existing is never modified; a
// changed result always carries a fresh record.
func Resolve(candidate Touch, existing *Record, landingPage string, now time.Time) Result {
	if !Qualifies(candidate, existing) {
		return Result{Record: existing, Changed: false}
	}

	touch := candidate.
		With(KeyTimestamp, now.UTC().Format(TimestampLayout)).
		With(KeyLandingPage, landingPage)

	if existing == nil {
		return Result{
			Record: &Record{
				FirstTouch:   touch,
				LastTouch:    touch,
				SessionCount: 1,
			},
			Changed: true,
		}
	}

	count := existing.SessionCount
	if count < 1 {
		count = 1
	}

	return Result{
		Record: &Record{
			FirstTouch:   NewTouch(existing.FirstTouch.Fields()),
			LastTouch:    touch,
			SessionCount: count + 1,
		},
		Changed: true,
	}
}
