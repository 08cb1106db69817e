/*
conflict.go - Overlap detection between a candidate range and existing requests

PURPOSE:
  Screens a candidate date range against a member's existing requests.
  Two inclusive ranges overlap iff candidateStart <= existingEnd AND
  candidateEnd >= existingStart; a shared boundary day counts.

REPORTING:
  The first match in iteration order is reported. Callers never need an
  aggregate of all conflicts, only whether one exists and which it is.

FILTERING:
  The detector compares against whatever it is given. The lifecycle manager
  filters REJECTED requests out before calling, so rejected leave does not
  block a new submission; pass the unfiltered list to reproduce the stricter
  behavior.

PURITY:
  Read-only; safe for unlimited concurrency.
*/
package leave

// Conflict is the outcome of an overlap check.
type Conflict struct {
	Overlaps    bool
	Conflicting *LeaveRequest
}

// Overlapping reports whether [aStart, aEnd] touches [bStart, bEnd],
// boundaries included.
func Overlapping(aStart, aEnd, bStart, bEnd Date) bool {
	return aStart.BeforeOrEqual(bEnd) && aEnd.AfterOrEqual(bStart)
}

// DetectConflict checks the candidate range against existing requests and
// reports the first overlap found.
func DetectConflict(start, end Date, existing []LeaveRequest) Conflict {
	for i := range existing {
		r := &existing[i]
		if Overlapping(start, end, r.StartDate, r.EndDate) {
			return Conflict{Overlaps: true, Conflicting: r}
		}
	}
	return Conflict{}
}

// FilterBlocking drops terminal REJECTED requests, keeping PENDING and
// APPROVED ones, which are the only ones that should block or warn.
func FilterBlocking(requests []LeaveRequest) []LeaveRequest {
	out := make([]LeaveRequest, 0, len(requests))
	for _, r := range requests {
		if r.Status != StatusRejected {
			out = append(out, r)
		}
	}
	return out
}
