package progress

import (
	"fmt"
	"sort"
	"time"

	"github.com/mcoot/typerace-go/internal/model"
)

// CharsPerWord is the standard word length used for WPM
const CharsPerWord = 5

// Snapshot is one progress report from a player
type Snapshot struct {
	CharsTyped   int
	CharsCorrect int
	At           time.Time
}

// Tracker validates progress reports and derives standings from a session's members
type Tracker struct{}

// New creates a new Tracker
func New() *Tracker {
	return &Tracker{}
}

// Update checks snap against the member's last accepted progress and records it.
// Ordering violations are reported as stale before the counts are checked for
// shape. It reports whether the update completed the member's text.
func (t *Tracker) Update(s *model.Session, playerID model.PlayerID, snap Snapshot) (bool, error) {
	member := s.Member(playerID)
	if member == nil {
		return false, model.ErrNotMember
	}
	last := member.Progress
	if last.Finished() {
		return false, model.ErrMemberFinished
	}

	if snap.CharsTyped < 0 || snap.CharsCorrect < 0 {
		return false, model.Invalidf("character counts must not be negative")
	}

	if s.StartedAt != nil && snap.At.Before(*s.StartedAt) {
		return false, fmt.Errorf("%w: timestamp %s precedes round start", model.ErrStaleUpdate, snap.At.Format(time.RFC3339Nano))
	}
	if !last.UpdatedAt.IsZero() && !snap.At.After(last.UpdatedAt) {
		return false, fmt.Errorf("%w: timestamp %s is not after %s", model.ErrStaleUpdate,
			snap.At.Format(time.RFC3339Nano), last.UpdatedAt.Format(time.RFC3339Nano))
	}
	if snap.CharsTyped < last.CharsTyped {
		return false, fmt.Errorf("%w: typed count went from %d to %d", model.ErrStaleUpdate, last.CharsTyped, snap.CharsTyped)
	}
	if s.StartedAt != nil && s.Config.TimeLimit > 0 && snap.At.After(s.EndsAt()) {
		return false, model.Invalidf("timestamp %s is after the round deadline %s",
			snap.At.Format(time.RFC3339Nano), s.EndsAt().Format(time.RFC3339Nano))
	}

	target := s.TargetLength()
	switch {
	case snap.CharsCorrect > snap.CharsTyped:
		return false, model.Invalidf("correct characters %d exceed typed %d", snap.CharsCorrect, snap.CharsTyped)
	case snap.CharsCorrect > target:
		return false, model.Invalidf("correct characters %d exceed target length %d", snap.CharsCorrect, target)
	}

	member.Progress = model.Progress{
		CharsTyped:   snap.CharsTyped,
		CharsCorrect: snap.CharsCorrect,
		UpdatedAt:    snap.At,
	}
	if target > 0 && snap.CharsCorrect == target {
		at := snap.At
		member.Progress.FinishedAt = &at
		return true, nil
	}
	return false, nil
}

// WPM returns words per minute for correct characters over elapsed time
func WPM(correct int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return (float64(correct) / CharsPerWord) / elapsed.Minutes()
}

// Accuracy returns the share of typed characters that were correct
func Accuracy(correct, typed int) float64 {
	if typed == 0 {
		return 0
	}
	return float64(correct) / float64(typed)
}

func standingFor(s *model.Session, m model.Membership) model.Standing {
	st := model.Standing{
		PlayerID:     m.Player.ID,
		DisplayName:  m.Player.DisplayName,
		CharsCorrect: m.Progress.CharsCorrect,
		CharsTyped:   m.Progress.CharsTyped,
		Accuracy:     Accuracy(m.Progress.CharsCorrect, m.Progress.CharsTyped),
		Finished:     m.Progress.Finished(),
	}
	if m.Progress.FinishedAt != nil {
		at := *m.Progress.FinishedAt
		st.FinishedAt = &at
	}

	if s.StartedAt != nil && !m.Progress.UpdatedAt.IsZero() {
		end := m.Progress.UpdatedAt
		if m.Progress.FinishedAt != nil {
			end = *m.Progress.FinishedAt
		}
		st.WPM = WPM(m.Progress.CharsCorrect, end.Sub(*s.StartedAt))
	}
	return st
}

// ranked pairs a standing with the timestamp used to break ties
type ranked struct {
	standing model.Standing
	at       time.Time
	reported bool
}

func (r ranked) laterThan(o ranked) bool {
	if r.reported != o.reported {
		return !r.reported
	}
	return r.at.After(o.at)
}

// Standings returns live standings: most correct characters first, earlier
// updates breaking ties. Players who have not reported yet sort last.
func (t *Tracker) Standings(s *model.Session) []model.Standing {
	rows := make([]ranked, len(s.Members))
	for i, m := range s.Members {
		rows[i] = ranked{
			standing: standingFor(s, m),
			at:       m.Progress.UpdatedAt,
			reported: !m.Progress.UpdatedAt.IsZero(),
		}
	}

	less := func(a, b ranked) bool {
		if a.standing.CharsCorrect != b.standing.CharsCorrect {
			return a.standing.CharsCorrect > b.standing.CharsCorrect
		}
		return b.laterThan(a)
	}
	return assignRanks(rows, less)
}

// FinalStandings orders finished players by WPM, then by finish time, followed
// by unfinished players ordered as in Standings
func (t *Tracker) FinalStandings(s *model.Session) []model.Standing {
	rows := make([]ranked, len(s.Members))
	for i, m := range s.Members {
		row := ranked{
			standing: standingFor(s, m),
			at:       m.Progress.UpdatedAt,
			reported: !m.Progress.UpdatedAt.IsZero(),
		}
		if m.Progress.FinishedAt != nil {
			row.at = *m.Progress.FinishedAt
		}
		rows[i] = row
	}

	less := func(a, b ranked) bool {
		if a.standing.Finished != b.standing.Finished {
			return a.standing.Finished
		}
		if a.standing.Finished {
			if a.standing.WPM != b.standing.WPM {
				return a.standing.WPM > b.standing.WPM
			}
			return a.at.Before(b.at)
		}
		if a.standing.CharsCorrect != b.standing.CharsCorrect {
			return a.standing.CharsCorrect > b.standing.CharsCorrect
		}
		return b.laterThan(a)
	}
	return assignRanks(rows, less)
}

// assignRanks sorts rows and applies competition ranking (1, 2, 2, 4):
// rows neither of which sorts before the other share a rank
func assignRanks(rows []ranked, less func(a, b ranked) bool) []model.Standing {
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })

	out := make([]model.Standing, len(rows))
	for i, row := range rows {
		row.standing.Rank = i + 1
		if i > 0 && !less(rows[i-1], row) {
			row.standing.Rank = out[i-1].Rank
		}
		out[i] = row.standing
	}
	return out
}

// Winner picks the winner from final standings: the top finisher, unless
// nobody finished or the top two finishers are exactly tied
func Winner(final []model.Standing) model.PlayerID {
	if len(final) == 0 || !final[0].Finished {
		return ""
	}
	if len(final) > 1 && final[1].Finished && final[1].Rank == final[0].Rank {
		return ""
	}
	return final[0].PlayerID
}
