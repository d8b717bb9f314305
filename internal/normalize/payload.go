package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
)

var ErrNotObject = errors.New("form payload is not a JSON object")

// Person is a qualified party of the petition.
type Person struct {
	Name          string
	CPF           string
	RG            string
	BirthDate     *time.Time
	BirthDateRaw  string // as typed on the form
	Address       string
	Phone         string
	Email         string
	Occupation    string
	MaritalStatus string
	Nationality   string
	Employer      string
}

// Dependent is a child on whose behalf the action is filed.
type Dependent struct {
	Name      string
	CPF          string
	BirthDate    *time.Time
	BirthDateRaw string
	// Age is -1 when the birth date is unknown.
	Age      int
	Capacity Capacity
}

// CasePayload is the typed view of a submitted form.
type CasePayload struct {
	Protocol       string
	Action         constants.ActionType
	Representative Person
	Respondent     Person
	Dependents     []Dependent

	MonthlyValue       Money
	HasMonthlyValue    bool
	MinimumWage        float64
	MinimumWagePercent float64
	AnnualValue        Money
	DebtValue          Money
	HasDebtValue       bool

	Comarca     string
	Defender    string
	Story       string
	BankDetails string
	Custody     string
	PaymentDay  string

	// Extra keeps every scalar top-level field so templates can reference raw keys.
	Extra map[string]string
	// Warnings lists inputs that were ignored because they could not be parsed.
	Warnings []string

	ReferenceDate time.Time
}

// Plural reports whether more than one dependent is party to the case.
func (p *CasePayload) Plural() bool {
	return len(p.Dependents) > 1
}

// CapacityPhrase is CapacityPhrase over the payload's dependents.
func (p *CasePayload) CapacityPhrase() string {
	return CapacityPhrase(p.Dependents)
}

// DependentNames lists dependent names in input order.
func (p *CasePayload) DependentNames() []string {
	names := make([]string, 0, len(p.Dependents))
	for _, d := range p.Dependents {
		names = append(names, d.Name)
	}
	return names
}

// Config carries the legal constants applied during normalization.
type Config struct {
	DefaultComarca string
	DefenderName   string
	MinimumWage    float64
	// Now is the clock used to compute ages; defaults to time.Now.
	Now func() time.Time
}

// Normalizer turns raw form payloads into CasePayloads.
type Normalizer struct {
	cfg Config
	log *slog.Logger
}

func NewNormalizer(cfg Config, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Normalizer{cfg: cfg, log: logger}
}

// Normalize decodes a raw JSON form payload. Only a non-object payload is an error;
// malformed individual fields degrade to empty values and are listed in Warnings.
func (n *Normalizer) Normalize(protocol string, raw json.RawMessage) (*CasePayload, error) {
	var fields map[string]any
	if len(raw) == 0 {
		fields = map[string]any{}
	} else if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return n.NormalizeMap(protocol, fields), nil
}

// ActionOf reads the requested action type from a raw form payload.
func ActionOf(raw json.RawMessage) (constants.ActionType, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	action, _ := constants.Canonicalize(firstString(fields, aliasAction))
	return action, nil
}

// NormalizeMap is Normalize over an already decoded payload.
func (n *Normalizer) NormalizeMap(protocol string, fields map[string]any) *CasePayload {
	now := n.cfg.Now().UTC()
	p := &CasePayload{
		Protocol:      protocol,
		MinimumWage:   n.cfg.MinimumWage,
		Defender:      n.cfg.DefenderName,
		Extra:         map[string]string{},
		ReferenceDate: now,
	}

	action, _ := constants.Canonicalize(firstString(fields, aliasAction))
	p.Action = action

	p.Representative = Person{
		Name:          TitleName(firstString(fields, aliasRepName)),
		CPF:           FormatCPF(firstString(fields, aliasRepCPF)),
		RG:            firstString(fields, aliasRepRG),
		Address:       firstString(fields, aliasRepAddress),
		Phone:         firstString(fields, aliasRepPhone),
		Email:         firstString(fields, aliasRepEmail),
		Occupation:    firstString(fields, aliasRepOccupation),
		MaritalStatus: firstString(fields, aliasRepMarital),
		Nationality:   firstString(fields, aliasRepNation),
	}
	if p.Representative.Nationality == "" {
		p.Representative.Nationality = "brasileira"
	}
	p.Representative.BirthDateRaw = strings.TrimSpace(firstString(fields, aliasRepBirth))
	p.Representative.BirthDate = n.parseDate(p, "data_nascimento_representante", p.Representative.BirthDateRaw)

	p.Respondent = Person{
		Name:       TitleName(firstString(fields, aliasRespName)),
		CPF:        FormatCPF(firstString(fields, aliasRespCPF)),
		Address:    firstString(fields, aliasRespAddress),
		Occupation: firstString(fields, aliasRespOccupation),
		Phone:      firstString(fields, aliasRespPhone),
		Employer:   firstString(fields, aliasRespEmployer),
	}

	p.Dependents = n.dependents(p, fields, now)
	p.checkCPFs()

	if v, ok := first(fields, aliasMonthly); ok {
		m, err := ParseBRL(v)
		if err != nil {
			p.warn("valor_mensal_pensao", err)
		} else {
			p.MonthlyValue = m
			p.HasMonthlyValue = true
		}
	}
	if p.HasMonthlyValue {
		p.AnnualValue = p.MonthlyValue.Annual()
		p.MinimumWagePercent = p.MonthlyValue.PercentOf(n.cfg.MinimumWage)
	}
	if v, ok := first(fields, aliasPercent); ok {
		pct, err := parsePercent(v)
		if err != nil {
			p.warn("percentual_salario_minimo", err)
		} else {
			p.MinimumWagePercent = pct
			if !p.HasMonthlyValue && n.cfg.MinimumWage > 0 {
				p.MonthlyValue = FromReais(n.cfg.MinimumWage * pct / 100)
				p.HasMonthlyValue = true
				p.AnnualValue = p.MonthlyValue.Annual()
			}
		}
	}
	if v, ok := first(fields, aliasDebt); ok {
		m, err := ParseBRL(v)
		if err != nil {
			p.warn("valor_debito", err)
		} else {
			p.DebtValue = m
			p.HasDebtValue = true
		}
	}

	p.Comarca = firstString(fields, aliasComarca)
	if p.Comarca == "" {
		p.Comarca = n.cfg.DefaultComarca
	}
	p.Story = firstString(fields, aliasStory)
	p.BankDetails = firstString(fields, aliasBank)
	p.Custody = firstString(fields, aliasCustody)
	p.PaymentDay = firstString(fields, aliasDeadline)

	for k, v := range fields {
		if s := scalarString(v); s != "" {
			p.Extra[k] = s
		}
	}

	if len(p.Warnings) > 0 {
		n.log.Warn("normalize.fields_ignored", "protocol", protocol, "warnings", p.Warnings)
	}
	return p
}

// checkCPFs flags numbers whose check digits do not match; they are kept as typed.
func (p *CasePayload) checkCPFs() {
	v := common.NewValidator().
		Field("cpf_representante", p.Representative.CPF, common.CPF).
		Field("cpf_requerido", p.Respondent.CPF, common.CPF)
	for i, d := range p.Dependents {
		v.Field(fmt.Sprintf("dependentes[%d].cpf", i), d.CPF, common.CPF)
	}
	for _, e := range v.Errors() {
		p.Warnings = append(p.Warnings, e.Field+": "+e.Message)
	}
}

func (p *CasePayload) warn(field string, err error) {
	p.Warnings = append(p.Warnings, field+": "+err.Error())
}

func (n *Normalizer) parseDate(p *CasePayload, field, s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := ParseDate(s)
	if err != nil {
		p.warn(field, err)
		return nil
	}
	return &t
}

func (n *Normalizer) dependents(p *CasePayload, fields map[string]any, now time.Time) []Dependent {
	var out []Dependent
	seen := map[string]bool{}
	add := func(name, cpf, birth, field string) {
		name = TitleName(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		d := Dependent{Name: name, CPF: FormatCPF(cpf), BirthDateRaw: strings.TrimSpace(birth), Age: -1, Capacity: CapacityUnknown}
		if bd := n.parseDate(p, field, birth); bd != nil {
			d.BirthDate = bd
			d.Age = AgeAt(*bd, now)
			d.Capacity = CapacityForAge(d.Age)
		}
		out = append(out, d)
	}

	add(firstString(fields, aliasChildName), firstString(fields, aliasChildCPF), firstString(fields, aliasChildBirth), "data_nascimento_assistido")

	raw, ok := first(fields, aliasDependents)
	if !ok {
		return out
	}
	items, err := dependentItems(raw)
	if err != nil {
		p.warn("outros_filhos", err)
		return out
	}
	for _, item := range items {
		switch x := item.(type) {
		case string:
			add(x, "", "", "outros_filhos.data_nascimento")
		case map[string]any:
			add(firstString(x, aliasDepName), firstString(x, aliasDepCPF), firstString(x, aliasDepBirth), "outros_filhos.data_nascimento")
		}
	}
	return out
}

// dependentItems accepts a decoded list or a JSON-encoded list string.
func dependentItems(raw any) ([]any, error) {
	switch x := raw.(type) {
	case []any:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		var items []any
		if err := json.Unmarshal([]byte(s), &items); err != nil {
			return nil, fmt.Errorf("malformed dependents list: %w", err)
		}
		return items, nil
	}
	return nil, fmt.Errorf("unsupported dependents type %T", raw)
}

func parsePercent(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(x), "%"))
		s = strings.ReplaceAll(s, ",", ".")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid percentage %q", x)
		}
		return f, nil
	}
	return 0, fmt.Errorf("invalid percentage type %T", v)
}
