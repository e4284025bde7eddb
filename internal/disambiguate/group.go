package disambiguate

import (
	"fmt"
	"sort"
	"time"

	"github.com/suykerbuyk/vibe-journal/internal/normalize"
)

// Session is a run of messages sharing one conversation context.
type Session struct {
	ID       string
	Messages []normalize.Message
}

// Span returns the first and last message timestamps.
func (s Session) Span() (first, last time.Time) {
	if len(s.Messages) == 0 {
		return time.Time{}, time.Time{}
	}
	return s.Messages[0].Timestamp, s.Messages[len(s.Messages)-1].Timestamp
}

// Group partitions time-ordered messages into sessions, in order of first
// appearance. A clear ends a session: messages after it under the same
// session id form a new session "<id>#<n>". The clear marker itself belongs
// to neither side.
func Group(messages []normalize.Message) []Session {
	var sessions []Session
	index := make(map[string]int)      // current key -> position in sessions
	current := make(map[string]string) // source session id -> current key
	clears := make(map[string]int)

	for _, m := range messages {
		if m.Kind == normalize.KindClear {
			if _, ok := current[m.SessionID]; ok {
				clears[m.SessionID]++
				delete(current, m.SessionID)
			}
			continue
		}

		key, ok := current[m.SessionID]
		if !ok {
			key = m.SessionID
			if n := clears[m.SessionID]; n > 0 {
				key = fmt.Sprintf("%s#%d", m.SessionID, n+1)
			}
			current[m.SessionID] = key
			index[key] = len(sessions)
			sessions = append(sessions, Session{ID: key})
		}

		i := index[key]
		sessions[i].Messages = append(sessions[i].Messages, m)
	}

	return sessions
}

// Flatten returns the messages of the selected sessions, time-ordered.
func Flatten(sessions []Session, ids []string) []normalize.Message {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var out []normalize.Message
	for _, s := range sessions {
		if want[s.ID] {
			out = append(out, s.Messages...)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
