package narrative

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/legalaid-petitions/internal/normalize"
)

// maxDocumentChars caps how much extracted document text goes into a prompt.
const maxDocumentChars = 6000

// forbiddenTerms maps outdated or stigmatizing terms to the wording the defenders use.
var forbiddenTerms = [][2]string{
	{"menor", "criança ou adolescente"},
	{"pátrio poder", "poder familiar"},
	{"visitas", "convivência"},
	{"mãe solteira", "genitora"},
	{"filho ilegítimo", "filho"},
	{"amásia", "companheira"},
}

func systemPrompt() string {
	var b strings.Builder
	b.WriteString("Você é um(a) defensor(a) público(a) experiente em Direito de Família, redigindo a seção DOS FATOS de uma petição inicial.\n")
	b.WriteString("Escreva em português formal, na terceira pessoa, em parágrafos corridos e objetivos.\n")
	b.WriteString("Regras obrigatórias:\n")
	b.WriteString("- Não use markdown, listas, títulos ou cabeçalhos; comece diretamente pelo primeiro parágrafo.\n")
	b.WriteString("- Não invente fatos, datas, valores ou nomes que não estejam nas informações fornecidas.\n")
	b.WriteString("- Os marcadores no formato [[CATEGORIA_N]] representam dados pessoais: reproduza-os exatamente como recebidos, sem alterá-los ou explicá-los.\n")
	b.WriteString("- Cite dispositivos legais no formato \"art. 1.694 do Código Civil\".\n")
	b.WriteString("- Termos proibidos e seus substitutos:\n")
	for _, t := range forbiddenTerms {
		fmt.Fprintf(&b, "  \"%s\" -> \"%s\"\n", t[0], t[1])
	}
	return b.String()
}

func userPrompt(p *normalize.CasePayload, documents string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tipo de ação: %s\n", p.Action.Title())
	if r := p.Representative.Name; r != "" {
		fmt.Fprintf(&b, "Representante legal (genitora): %s\n", r)
	}
	if names := p.DependentNames(); len(names) > 0 {
		fmt.Fprintf(&b, "Requerente(s): %s", normalize.JoinNames(names))
		if phrase := p.CapacityPhrase(); phrase != "" {
			fmt.Fprintf(&b, " (%s)", phrase)
		}
		b.WriteString("\n")
		for _, d := range p.Dependents {
			if d.Age >= 0 {
				fmt.Fprintf(&b, "- %s: %d anos\n", d.Name, d.Age)
			}
		}
	}
	if q := p.Respondent.Name; q != "" {
		fmt.Fprintf(&b, "Requerido (genitor): %s\n", q)
	}
	if o := p.Respondent.Occupation; o != "" {
		fmt.Fprintf(&b, "Ocupação do requerido: %s\n", o)
	}
	if e := p.Respondent.Employer; e != "" {
		fmt.Fprintf(&b, "Empregador do requerido: %s\n", e)
	}
	if p.HasMonthlyValue {
		fmt.Fprintf(&b, "Valor mensal pretendido: R$ %s (%s)", p.MonthlyValue.Format(), normalize.Extenso(p.MonthlyValue))
		if p.MinimumWagePercent > 0 {
			fmt.Fprintf(&b, ", equivalente a %s%% do salário mínimo", normalize.FormatDecimal(p.MinimumWagePercent))
		}
		b.WriteString("\n")
	}
	if p.HasDebtValue {
		fmt.Fprintf(&b, "Débito alimentar em atraso: R$ %s\n", p.DebtValue.Format())
	}
	if p.Custody != "" {
		fmt.Fprintf(&b, "Situação da guarda: %s\n", p.Custody)
	}
	if p.Story != "" {
		fmt.Fprintf(&b, "\nRelato da assistida:\n%s\n", p.Story)
	}
	if documents = strings.TrimSpace(documents); documents != "" {
		if len([]rune(documents)) > maxDocumentChars {
			documents = string([]rune(documents)[:maxDocumentChars])
		}
		fmt.Fprintf(&b, "\nTexto extraído dos documentos anexados:\n%s\n", documents)
	}
	b.WriteString("\nRedija a seção DOS FATOS com a seguinte estrutura: ")
	b.WriteString("(1) vínculo de filiação entre o requerido e os requerentes; ")
	b.WriteString("(2) necessidades dos requerentes e quem arca atualmente com seu sustento; ")
	b.WriteString("(3) capacidade contributiva do requerido; ")
	b.WriteString("(4) fechamento justificando o valor pretendido.")
	return b.String()
}

const summarySystemPrompt = `Você auxilia a equipe da Defensoria Pública a triar casos de Direito de Família.
Resuma o material recebido em no máximo cinco frases, em português, destacando partes, pedido e documentos apresentados.
Não use markdown. Reproduza exatamente os marcadores no formato [[CATEGORIA_N]].`
