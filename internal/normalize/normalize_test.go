package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
)

func fixedNormalizer() *Normalizer {
	return NewNormalizer(Config{
		DefaultComarca: "Teresina",
		DefenderName:   "Defensoria Pública",
		MinimumWage:    1518,
		Now:            func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) },
	}, nil)
}

func TestParseBRL(t *testing.T) {
	cases := []struct {
		in   any
		want Money
	}{
		{"1.500,00", 150000},
		{"R$ 1.500,50", 150050},
		{"1500,5", 150050},
		{"1500.00", 150000},
		{"1,500.75", 150075},
		{"1.500", 150000},
		{"12.345.678,90", 1234567890},
		{"800", 80000},
		{float64(950.25), 95025},
		{int64(300), 30000},
	}
	for _, c := range cases {
		got, err := ParseBRL(c.in)
		if err != nil {
			t.Fatalf("ParseBRL(%v): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseBRL(%v) = %d, want %d", c.in, got, c.want)
		}
	}

	for _, bad := range []any{"", "abc", "-10,00", nil, true} {
		if _, err := ParseBRL(bad); err == nil {
			t.Fatalf("ParseBRL(%v) expected error", bad)
		}
	}
}

func TestMoneyFormat(t *testing.T) {
	cases := map[Money]string{
		0:         "0,00",
		5:         "0,05",
		150000:    "1.500,00",
		1800000:   "18.000,00",
		123456789: "1.234.567,89",
		-150000:   "-1.500,00",
	}
	for m, want := range cases {
		if got := m.Format(); got != want {
			t.Fatalf("Format(%d) = %q, want %q", m, got, want)
		}
	}
}

func TestExtenso(t *testing.T) {
	cases := map[Money]string{
		0:         "zero reais",
		100:       "um real",
		10000:     "cem reais",
		10100:     "cento e um reais",
		150000:    "mil e quinhentos reais",
		1800000:   "dezoito mil reais",
		123400:    "mil duzentos e trinta e quatro reais",
		105000:    "mil e cinquenta reais",
		2150000:   "vinte e um mil e quinhentos reais",
		100000000: "um milhão de reais",
		200000000: "dois milhões de reais",
		150000000: "um milhão e quinhentos mil reais",
		150050:    "mil e quinhentos reais e cinquenta centavos",
		1:         "um centavo",
		99:        "noventa e nove centavos",
		71500:     "setecentos e quinze reais",
	}
	for m, want := range cases {
		if got := Extenso(m); got != want {
			t.Fatalf("Extenso(%d) = %q, want %q", m, got, want)
		}
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2015, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"10/03/2015", "2015-03-10", "10 de março de 2015", "10 de Marco de 2015", "2015-03-10T08:30:00Z"} {
		got, err := ParseDate(in)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseDate(%q) = %v", in, got)
		}
	}
	for _, bad := range []string{"", "31 de fevereiro de 2015", "amanhã", "2015/13/40"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("ParseDate(%q) expected error", bad)
		}
	}
}

func TestAgeAt(t *testing.T) {
	ref := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	if got := AgeAt(time.Date(2016, 10, 17, 0, 0, 0, 0, time.UTC), ref); got != 10 {
		t.Fatalf("birthday today: %d", got)
	}
	if got := AgeAt(time.Date(2008, 10, 18, 0, 0, 0, 0, time.UTC), ref); got != 17 {
		t.Fatalf("birthday tomorrow: %d", got)
	}
}

func TestNormalizeMonthlyValue(t *testing.T) {
	p, err := fixedNormalizer().Normalize("202610171000001", json.RawMessage(`{"valor_mensal_pensao":"1.500,00"}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.MonthlyValue.Reais() != 1500.00 {
		t.Fatalf("monthly = %v", p.MonthlyValue.Reais())
	}
	if p.AnnualValue.Reais() != 18000.00 {
		t.Fatalf("annual = %v", p.AnnualValue.Reais())
	}
	fields := p.TemplateFields()
	if fields["valor_causa_extenso"] != "dezoito mil reais" {
		t.Fatalf("extenso = %q", fields["valor_causa_extenso"])
	}
	if fields["valor_causa"] != "18.000,00" {
		t.Fatalf("valor_causa = %q", fields["valor_causa"])
	}
	if fields["percentual_salario_minimo"] != "98,81" {
		t.Fatalf("percentual = %q", fields["percentual_salario_minimo"])
	}
	if p.Comarca != "Teresina" {
		t.Fatalf("comarca default = %q", p.Comarca)
	}
}

func TestNormalizeMalformedDependents(t *testing.T) {
	p, err := fixedNormalizer().Normalize("p", json.RawMessage(`{"outros_filhos":"{not json"}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(p.Dependents) != 0 {
		t.Fatalf("dependents = %+v", p.Dependents)
	}
	if len(p.Warnings) != 1 {
		t.Fatalf("warnings = %v", p.Warnings)
	}
}

func TestNormalizeMixedCapacity(t *testing.T) {
	raw := `{
		"nome_assistido": "ana silva",
		"data_nascimento_assistido": "01/05/2016",
		"outros_filhos": "[{\"nome\":\"Bruno Silva\",\"data_nascimento\":\"15/01/2009\"}]"
	}`
	p, err := fixedNormalizer().Normalize("p", json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(p.Dependents) != 2 {
		t.Fatalf("dependents = %+v", p.Dependents)
	}
	if p.Dependents[0].Name != "Ana Silva" || p.Dependents[0].Age != 10 {
		t.Fatalf("first = %+v", p.Dependents[0])
	}
	if p.Dependents[1].Age != 17 || p.Dependents[1].Capacity != CapacityRelative {
		t.Fatalf("second = %+v", p.Dependents[1])
	}
	if got := p.CapacityPhrase(); got != "neste ato representados e assistidos" {
		t.Fatalf("phrase = %q", got)
	}
	if got := p.TemplateFields()["nomes_assistidos"]; got != "Ana Silva e Bruno Silva" {
		t.Fatalf("nomes = %q", got)
	}
}

func TestCapacityPhrase(t *testing.T) {
	dep := func(c Capacity) Dependent { return Dependent{Name: "x", Capacity: c} }
	cases := []struct {
		deps []Dependent
		want string
	}{
		{[]Dependent{dep(CapacityAbsolute)}, "neste ato representado(a)"},
		{[]Dependent{dep(CapacityAbsolute), dep(CapacityAbsolute)}, "neste ato representados"},
		{[]Dependent{dep(CapacityRelative)}, "neste ato assistido(a)"},
		{[]Dependent{dep(CapacityRelative), dep(CapacityRelative)}, "neste ato assistidos"},
		{[]Dependent{dep(CapacityFull)}, ""},
		{[]Dependent{dep(CapacityUnknown)}, "neste ato representado(a)"},
		{nil, ""},
	}
	for _, c := range cases {
		if got := CapacityPhrase(c.deps); got != c.want {
			t.Fatalf("CapacityPhrase(%v) = %q, want %q", c.deps, got, c.want)
		}
	}
}

func TestNormalizeAliasesAndNesting(t *testing.T) {
	raw := `{
		"requerente": {"nome": "CARLA DOS SANTOS", "cpf": "11144477735"},
		"requerido": {"nome": "josé de oliveira", "cpf": "529.982.247-25", "endereco": "Rua A, 10"},
		"nomeRepresentante": "maria dos santos",
		"valorMensalPensao": 700,
		"acaoEspecifica": "execução",
		"valor_debito": "2.100,00",
		"filhos": [{"nomeCompleto": "Davi dos Santos"}, "carla dos santos", ""],
		"comarca": "Parnaíba"
	}`
	p, err := fixedNormalizer().Normalize("p", json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.Representative.Name != "Maria dos Santos" {
		t.Fatalf("rep = %q", p.Representative.Name)
	}
	if p.Respondent.Name != "José de Oliveira" || p.Respondent.CPF != "529.982.247-25" || p.Respondent.Address != "Rua A, 10" {
		t.Fatalf("respondent = %+v", p.Respondent)
	}
	if len(p.Dependents) != 2 || p.Dependents[0].CPF != "111.444.777-35" || p.Dependents[1].Name != "Davi dos Santos" {
		t.Fatalf("dependents = %+v", p.Dependents)
	}
	if p.Action != constants.ActionExecucaoAlimentos {
		t.Fatalf("action = %q", p.Action)
	}
	if p.MonthlyValue != 70000 || p.DebtValue != 210000 {
		t.Fatalf("values = %d %d", p.MonthlyValue, p.DebtValue)
	}
	if p.Comarca != "Parnaíba" {
		t.Fatalf("comarca = %q", p.Comarca)
	}
}

func TestNormalizeRejectsNonObject(t *testing.T) {
	if _, err := fixedNormalizer().Normalize("p", json.RawMessage(`[1,2]`)); err == nil {
		t.Fatal("expected error for array payload")
	}
	p, err := fixedNormalizer().Normalize("p", nil)
	if err != nil || p == nil {
		t.Fatalf("empty payload: %v", err)
	}
}

func TestPercentFallsBackToMinimumWage(t *testing.T) {
	p, _ := fixedNormalizer().Normalize("p", json.RawMessage(`{"percentual_salario_minimo":"50%"}`))
	if !p.HasMonthlyValue || p.MonthlyValue != 75900 {
		t.Fatalf("monthly = %d", p.MonthlyValue)
	}
}

func TestDependentItemsAndTitleName(t *testing.T) {
	if got := TitleName("  maria  DA silva e souza "); got != "Maria da Silva e Souza" {
		t.Fatalf("TitleName = %q", got)
	}
	bd := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &CasePayload{Dependents: []Dependent{{Name: "A", BirthDate: &bd, Age: 6}, {Name: "B", Age: -1}}}
	items := p.DependentItems()
	if len(items) != 2 || items[0]["data_nascimento"] != "01/01/2020" || items[0]["idade"] != "6 anos" {
		t.Fatalf("items = %v", items)
	}
	if _, ok := items[1]["idade"]; ok {
		t.Fatalf("unknown age rendered: %v", items[1])
	}
}

func TestNormalizeFlagsInvalidCPF(t *testing.T) {
	raw := `{
		"nome_representante": "Maria",
		"cpf_representante": "529.982.247-25",
		"nome_requerido": "Carlos",
		"cpf_requerido": "123.456.789-00",
		"nome_assistido": "Ana",
		"cpf_assistido": "111.111.111-11"
	}`
	p, err := fixedNormalizer().Normalize("202610171000001", json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := []string{"cpf_requerido: invalid CPF", "dependentes[0].cpf: invalid CPF"}
	if len(p.Warnings) != len(want) {
		t.Fatalf("warnings = %v", p.Warnings)
	}
	for i, w := range want {
		if p.Warnings[i] != w {
			t.Fatalf("warning %d = %q, want %q", i, p.Warnings[i], w)
		}
	}
	if p.Respondent.CPF != "123.456.789-00" {
		t.Fatalf("invalid CPF must be kept as typed, got %q", p.Respondent.CPF)
	}
}
