package pgasc

import (
	"os"

	"github.com/luxfi/log"
)

// Fatal logs err at Crit level and aborts the process, matching the
// reference engine's gasneti_fatalerror path for conditions spec §7 marks
// unrecoverable (a barrier mismatch, a corrupted op pool, a second
// conflicting Init). Entry points never call this themselves; callers
// decide whether a returned error is fatal for their program.
func Fatal(lg log.Logger, err error) {
	if lg == nil {
		lg = log.NewNoOpLogger()
	}
	lg.Crit("pgasc: fatal error", "error", err)
	os.Exit(1)
}
