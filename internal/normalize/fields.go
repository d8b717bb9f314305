package normalize

import (
	"fmt"
	"strconv"
	"strings"
)

// TemplateFields renders the payload into the placeholder values used by document templates.
// Empty values are omitted so the assembler can flag them.
func (p *CasePayload) TemplateFields() map[string]string {
	f := make(map[string]string, len(p.Extra)+48)
	for k, v := range p.Extra {
		f[k] = v
	}
	set := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			f[k] = v
		}
	}

	set("protocolo", p.Protocol)
	set("tipo_acao", p.Action.Title())
	set("comarca", p.Comarca)
	set("defensor", p.Defender)
	set("data_atual", FormatLongDate(p.ReferenceDate))

	r := p.Representative
	set("nome_representante", r.Name)
	set("cpf_representante", r.CPF)
	set("rg_representante", r.RG)
	set("endereco_representante", r.Address)
	set("telefone_representante", r.Phone)
	set("email_representante", r.Email)
	set("profissao_representante", r.Occupation)
	set("estado_civil_representante", r.MaritalStatus)
	set("nacionalidade_representante", r.Nationality)
	if r.BirthDate != nil {
		set("data_nascimento_representante", FormatDate(*r.BirthDate))
	}

	q := p.Respondent
	set("nome_requerido", q.Name)
	set("cpf_requerido", q.CPF)
	set("endereco_requerido", q.Address)
	set("profissao_requerido", q.Occupation)
	set("telefone_requerido", q.Phone)
	set("empregador_requerido", q.Employer)

	if len(p.Dependents) > 0 {
		d := p.Dependents[0]
		set("nome_assistido", d.Name)
		set("cpf_assistido", d.CPF)
		if d.BirthDate != nil {
			set("data_nascimento_assistido", FormatDate(*d.BirthDate))
		}
		if d.Age >= 0 {
			set("idade_assistido", ageText(d.Age))
		}
		set("nomes_assistidos", JoinNames(p.DependentNames()))
		set("dependentes_qualificacao", p.qualification())
	}
	set("capacidade", p.CapacityPhrase())
	if p.Plural() {
		set("requerentes", "os requerentes")
		set("filhos_label", "filhos")
	} else {
		set("requerentes", "o(a) requerente")
		set("filhos_label", "filho(a)")
	}

	if p.HasMonthlyValue {
		set("valor_mensal", p.MonthlyValue.Format())
		set("valor_mensal_extenso", Extenso(p.MonthlyValue))
		set("valor_causa", p.AnnualValue.Format())
		set("valor_causa_extenso", Extenso(p.AnnualValue))
	}
	if p.MinimumWagePercent > 0 {
		set("percentual_salario_minimo", FormatDecimal(p.MinimumWagePercent))
	}
	if p.MinimumWage > 0 {
		set("salario_minimo", FromReais(p.MinimumWage).Format())
	}
	if p.HasDebtValue {
		set("valor_debito", p.DebtValue.Format())
		set("valor_debito_extenso", Extenso(p.DebtValue))
	}

	set("dados_bancarios", p.BankDetails)
	set("relato", p.Story)
	set("guarda", p.Custody)
	set("dia_pagamento", p.PaymentDay)
	return f
}

// DependentItems renders one loop item per dependent.
func (p *CasePayload) DependentItems() []map[string]string {
	items := make([]map[string]string, 0, len(p.Dependents))
	for _, d := range p.Dependents {
		item := map[string]string{"nome": d.Name}
		if d.CPF != "" {
			item["cpf"] = d.CPF
		}
		if d.BirthDate != nil {
			item["data_nascimento"] = FormatDate(*d.BirthDate)
		}
		if d.Age >= 0 {
			item["idade"] = ageText(d.Age)
		}
		items = append(items, item)
	}
	return items
}

func (p *CasePayload) qualification() string {
	parts := make([]string, 0, len(p.Dependents))
	for _, d := range p.Dependents {
		var b strings.Builder
		b.WriteString(strings.ToUpper(d.Name))
		if d.BirthDate != nil {
			fmt.Fprintf(&b, ", nascido(a) em %s", FormatDate(*d.BirthDate))
		}
		if d.CPF != "" {
			fmt.Fprintf(&b, ", inscrito(a) no CPF sob o nº %s", d.CPF)
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "; ")
}

func ageText(age int) string {
	if age == 1 {
		return "1 ano"
	}
	return strconv.Itoa(age) + " anos"
}
