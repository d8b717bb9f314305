package narrative

import (
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/internal/normalize"
	"github.com/joseph-ayodele/legalaid-petitions/internal/pii"
)

// BuildPIIMap collects every personal value of the payload, plus CPF-shaped numbers in free text.
func BuildPIIMap(p *normalize.CasePayload, freeText ...string) *pii.Map {
	b := pii.NewBuilder()
	addPerson(b, p.Representative)
	addPerson(b, p.Respondent)
	for _, d := range p.Dependents {
		b.Add(pii.Person, d.Name)
		addCPF(b, d.CPF)
		addDate(b, d.BirthDate, d.BirthDateRaw)
	}
	b.Add(pii.Account, p.BankDetails)

	b.ScanCPFs(p.Story)
	for _, t := range freeText {
		b.ScanCPFs(t)
	}
	return b.Build()
}

func addPerson(b *pii.Builder, person normalize.Person) {
	b.Add(pii.Person, person.Name)
	addCPF(b, person.CPF)
	b.Add(pii.RG, person.RG)
	b.Add(pii.Address, person.Address)
	b.Add(pii.Phone, person.Phone)
	b.Add(pii.Email, person.Email)
	addDate(b, person.BirthDate, person.BirthDateRaw)
}

// addDate masks a birth date in every layout the form accepts, plus the raw input.
func addDate(b *pii.Builder, t *time.Time, raw string) {
	if t == nil {
		b.Add(pii.Date, raw)
		return
	}
	b.Add(pii.Date, normalize.FormatDate(*t),
		raw,
		normalize.FormatLongDate(*t),
		t.Format("2006-01-02"),
		t.Format("2/1/2006"),
		t.Format("02-01-2006"),
		t.Format("02.01.2006"),
	)
}

func addCPF(b *pii.Builder, cpf string) {
	if cpf == "" {
		return
	}
	var digits []rune
	for _, r := range cpf {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	b.Add(pii.CPF, cpf, string(digits))
}
