// Package protocol encodes case identifiers: filing date (AAAAMMDD), one action-type
// digit and a six-digit daily sequence.
package protocol

import (
	"fmt"
	"strconv"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
)

const (
	Length = 15
	MaxSeq = 999999
)

type Protocol struct {
	Date   time.Time
	Action constants.ActionType
	Seq    int
}

func (p Protocol) String() string {
	return Generate(p.Date, p.Action, p.Seq)
}

// Generate formats a protocol number. seq is taken modulo MaxSeq+1.
func Generate(date time.Time, action constants.ActionType, seq int) string {
	if seq < 0 {
		seq = -seq
	}
	return fmt.Sprintf("%s%d%06d", date.Format("20060102"), action.Digit(), seq%(MaxSeq+1))
}

// Parse validates and decodes a protocol number.
func Parse(s string) (Protocol, error) {
	invalid := func(reason string) error {
		return common.NewAppError("INVALID_PROTOCOL", fmt.Sprintf("protocol %q: %s", s, reason), common.ErrInvalidInput)
	}
	if len(s) != Length {
		return Protocol{}, invalid("must have 15 digits")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return Protocol{}, invalid("must be numeric")
		}
	}
	date, err := time.Parse("20060102", s[:8])
	if err != nil {
		return Protocol{}, invalid("bad date")
	}
	action, ok := constants.ActionFromDigit(int(s[8] - '0'))
	if !ok {
		return Protocol{}, invalid("unknown action digit")
	}
	seq, _ := strconv.Atoi(s[9:])
	return Protocol{Date: date, Action: action, Seq: seq}, nil
}

// Valid reports whether s parses.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}
