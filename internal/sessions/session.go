package sessions

import "time"

// State is the derived position of a session in the conversation state machine.
type State string

const (
	StateNew        State = "new"         // not greeted yet
	StateAutomated  State = "automated"   // greeted, below the reply cap
	StateAtCap      State = "at_cap"      // greeted, cap reached, not handed over
	StateHandedOver State = "handed_over" // terminal until reset
)

// Session is the conversation state of one end user.
type Session struct {
	UserID       string    `json:"user_id"`
	LastActivity time.Time `json:"last_activity"` // zero = never active
	ReplyCount   int       `json:"automated_reply_count"`
	HandedOver   bool      `json:"handed_over"`
	Greeted      bool      `json:"greeted"`
}

// New returns the initial state for userID.
func New(userID string) Session {
	return Session{UserID: userID}
}

// State derives the state machine position for the given reply cap.
func (s Session) State(replyCap int) State {
	switch {
	case s.HandedOver:
		return StateHandedOver
	case !s.Greeted:
		return StateNew
	case s.ReplyCount >= replyCap:
		return StateAtCap
	default:
		return StateAutomated
	}
}

// Expired reports whether the session must be reset before handling a
// message received at now. A session with no recorded activity is always
// treated as fresh.
func (s Session) Expired(now time.Time, ttl time.Duration) bool {
	return s.LastActivity.IsZero() || now.Sub(s.LastActivity) > ttl
}

// Touch records activity at now.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}

// SoftReset re-opens an automated window without greeting again.
func (s *Session) SoftReset(now time.Time) {
	s.ReplyCount = 0
	s.HandedOver = false
	s.Greeted = true
	s.LastActivity = now
}
