package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/TheEleventhAvatar/pocket/internal/transcript"
)

// View types pair a JSON shape with a text rendering.

type transcriptList []transcript.Transcript

func (l transcriptList) String() string {
	if len(l) == 0 {
		return "no transcripts"
	}
	lines := make([]string, len(l))
	for i, t := range l {
		lines[i] = fmt.Sprintf("%s  (%s)", t, t.CreatedAt.Format(time.RFC3339))
	}
	return strings.Join(lines, "\n")
}

type countView struct {
	Unsynced int `json:"unsynced"`
}

func (c countView) String() string {
	return fmt.Sprintf("%d unsynced", c.Unsynced)
}

type markView struct {
	ID int64 `json:"id"`
}

func (m markView) String() string {
	return fmt.Sprintf("transcript %d marked synced", m.ID)
}

type syncView transcript.SyncResult

func (s syncView) String() string {
	r := transcript.SyncResult(s)
	if r.PassID == "" {
		return r.String()
	}
	return fmt.Sprintf("%s %s", r.PassID, r)
}

type deviceView transcript.DeviceStatus

func (d deviceView) String() string {
	state := "disconnected"
	if d.Connected {
		state = "connected"
	}
	if d.LastSyncAt == nil {
		return state + ", never synced"
	}
	return fmt.Sprintf("%s, last sync %s", state, d.LastSyncAt.Format(time.RFC3339))
}

type passList []transcript.SyncResult

func (l passList) String() string {
	if len(l) == 0 {
		return "no sync passes recorded"
	}
	lines := make([]string, len(l))
	for i, r := range l {
		lines[i] = fmt.Sprintf("%s  %s  (%s)", r.FinishedAt.Format(time.RFC3339), syncView(r), r.Duration())
	}
	return strings.Join(lines, "\n")
}
