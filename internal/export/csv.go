// Package export renders a user's session history in portable formats.
package export

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/domain"
	"github.com/Dev-Lops/controle-de-ponto-ilumeo/internal/duration"
)

// SessionsCSV writes one row per work session to w, oldest column layout:
// id, date, start, end, duration. Open sessions leave end and duration blank.
func SessionsCSV(w io.Writer, userCode string, sessions []domain.WorkSession) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"user_code", "session_id", "date", "start_time", "end_time", "duration"}); err != nil {
		return err
	}

	for _, s := range sessions {
		endStr := ""
		durStr := ""
		if s.EndTime != nil {
			endStr = s.EndTime.UTC().Format(time.RFC3339)
			durStr = duration.Between(s.StartTime, *s.EndTime)
		}
		row := []string{
			userCode,
			s.ID,
			s.StartTime.UTC().Format("2006-01-02"),
			s.StartTime.UTC().Format(time.RFC3339),
			endStr,
			durStr,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	return cw.Error()
}
