package schema

import (
	"errors"
	"testing"

	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
)

func TestDecodeJob(t *testing.T) {
	req, err := DecodeJob([]byte(`{"protocol":"202610171000001","attempt":2}`))
	if err != nil {
		t.Fatalf("DecodeJob: %v", err)
	}
	if req.Protocol != "202610171000001" || req.Attempt != 2 {
		t.Fatalf("req = %+v", req)
	}

	for _, body := range []string{`{}`, `{"protocol":"abc"}`, `{"protocol":202610171000001}`, `not json`, `[]`} {
		if _, err := DecodeJob([]byte(body)); !errors.Is(err, common.ErrValidation) {
			t.Fatalf("DecodeJob(%s) err = %v", body, err)
		}
	}
}

func TestValidateForm(t *testing.T) {
	if err := Validate(Form, []byte(`{"valor_mensal_pensao":"1.500,00","outros_filhos":"{not json","extra":true}`)); err != nil {
		t.Fatalf("valid form rejected: %v", err)
	}
	if err := Validate(Form, []byte(`{"valor_mensal_pensao":{"x":1}}`)); err == nil {
		t.Fatal("expected mismatch")
	}
	if err := Validate("missing.json", []byte(`{}`)); err == nil {
		t.Fatal("expected unknown schema error")
	}
}
