package session

import "time"

// SelectCurrent picks the session a new message from the user belongs to.
//
// A session flagged IsActive wins, unless it has expired. Otherwise the
// session with the latest LastSeen is returned. Ties go to the earlier
// element. Returns nil for an empty slice.
func SelectCurrent(sessions []*Session, now time.Time, expiry time.Duration) *Session {
	var flagged, recent *Session
	for _, sess := range sessions {
		if sess == nil {
			continue
		}
		if sess.IsActive && !sess.Expired(now, expiry) {
			if flagged == nil || sess.LastSeen().After(flagged.LastSeen()) {
				flagged = sess
			}
		}
		if recent == nil || sess.LastSeen().After(recent.LastSeen()) {
			recent = sess
		}
	}
	if flagged != nil {
		return flagged
	}
	return recent
}
