package domain

// LetterStatus is the coarse letter status track.
type LetterStatus string

const (
	StatusDraft     LetterStatus = "draft"
	StatusSubmitted LetterStatus = "submitted"
	StatusInReview  LetterStatus = "in_review"
	StatusApproved  LetterStatus = "approved"
	StatusCompleted LetterStatus = "completed"
	StatusCancelled LetterStatus = "cancelled"
)

var letterStatusEdges = map[LetterStatus]LetterStatus{
	StatusDraft:     StatusSubmitted,
	StatusSubmitted: StatusInReview,
	StatusInReview:  StatusApproved,
	StatusApproved:  StatusCompleted,
}

func (s LetterStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusInReview, StatusApproved, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s LetterStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Next returns the forward successor of s, if any.
func (s LetterStatus) Next() (LetterStatus, bool) {
	n, ok := letterStatusEdges[s]
	return n, ok
}

// CanTransition reports whether from -> to is an allowed status edge.
// Cancellation is reachable from every non-terminal status.
func CanTransition(from, to LetterStatus) bool {
	if from.Terminal() || !to.Valid() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	next, ok := letterStatusEdges[from]
	return ok && next == to
}

// PathTo returns the hops needed to walk forward from -> to, excluding from.
// ok is false when to is not reachable by forward edges.
func PathTo(from, to LetterStatus) (path []LetterStatus, ok bool) {
	cur := from
	for cur != to {
		next, has := letterStatusEdges[cur]
		if !has {
			return nil, false
		}
		path = append(path, next)
		cur = next
	}
	return path, true
}

// TimelineStatus is the four-stage drafting progress track.
type TimelineStatus string

const (
	TimelineReceived    TimelineStatus = "received"
	TimelineUnderReview TimelineStatus = "under_review"
	TimelineGenerating  TimelineStatus = "generating"
	TimelinePosted      TimelineStatus = "posted"
)

var timelineOrder = []TimelineStatus{TimelineReceived, TimelineUnderReview, TimelineGenerating, TimelinePosted}

func (t TimelineStatus) rank() int {
	for i, s := range timelineOrder {
		if s == t {
			return i
		}
	}
	return -1
}

func (t TimelineStatus) Valid() bool { return t.rank() >= 0 }

// Next returns the following stage; posted has none.
func (t TimelineStatus) Next() (TimelineStatus, bool) {
	r := t.rank()
	if r < 0 || r == len(timelineOrder)-1 {
		return "", false
	}
	return timelineOrder[r+1], true
}

// CanAdvanceTimeline allows exactly one forward step.
func CanAdvanceTimeline(from, to TimelineStatus) bool {
	next, ok := from.Next()
	return ok && next == to
}
