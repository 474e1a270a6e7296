package pgasc

import "fmt"

// Team identifies the participant set a collective runs over. This core
// only ever serves the implicit "all" team (spec §4.7's team-argument
// skeleton, kept but not generalized — see Open Questions in SPEC_FULL.md);
// any other value is a caller error caught before an op is scheduled.
type Team uint64

// AllTeam is the zero value: every rank/image participates.
const AllTeam Team = 0

func (t Team) validate() error {
	if t != AllTeam {
		return fmt.Errorf("%w: team %d is not supported, only the implicit all-team (0)", ErrBadArg, t)
	}
	return nil
}
