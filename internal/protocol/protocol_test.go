package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
)

func TestGenerateAndParse(t *testing.T) {
	d := time.Date(2026, 10, 17, 15, 4, 0, 0, time.UTC)
	s := Generate(d, constants.ActionExecucaoAlimentos, 42)
	if s != "202610172000042" {
		t.Fatalf("Generate = %s", s)
	}
	p, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Action != constants.ActionExecucaoAlimentos || p.Seq != 42 || p.Date.Day() != 17 {
		t.Fatalf("parsed = %+v", p)
	}
	if p.String() != s {
		t.Fatalf("String = %s", p.String())
	}
}

func TestGenerateWrapsSequence(t *testing.T) {
	if s := Generate(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), constants.ActionOther, MaxSeq+5); s != "202601029000004" {
		t.Fatalf("Generate = %s", s)
	}
}

func TestParseRejects(t *testing.T) {
	for _, s := range []string{"", "2026101710000", "20261017100000a", "202613171000001", "202610177000001"} {
		_, err := Parse(s)
		if !errors.Is(err, common.ErrInvalidInput) {
			t.Fatalf("Parse(%q) err = %v", s, err)
		}
		if Valid(s) {
			t.Fatalf("Valid(%q) = true", s)
		}
	}
}
