package series

import (
	"fmt"
	"strings"
)

// Mode selects between the national aggregate line and one line per region.
type Mode int

const (
	ModeAggregate Mode = iota
	ModeByRegion
)

func (m Mode) String() string {
	switch m {
	case ModeAggregate:
		return "aggregate"
	case ModeByRegion:
		return "by-region"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the canonical names plus the labels and values of the
// dashboard's radio control. An empty string selects by-region, the
// dashboard's initial state.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aggregate", "total", "the united states":
		return ModeAggregate, nil
	case "by-region", "by_region", "individual", "all", "":
		return ModeByRegion, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	if m != ModeAggregate && m != ModeByRegion {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
