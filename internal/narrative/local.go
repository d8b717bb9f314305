package narrative

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/normalize"
)

// BuildLocal assembles the facts section from structured data alone. It never fails.
func BuildLocal(p *normalize.CasePayload) string {
	plural := p.Plural()
	children := normalize.JoinNames(p.DependentNames())
	if children == "" {
		children = pick(plural, "Os requerentes", "O(A) requerente")
	}
	respondent := "do requerido"
	if p.Respondent.Name != "" {
		respondent += " " + p.Respondent.Name
	}

	var paras []string
	paras = append(paras, fmt.Sprintf("%s %s %s %s, conforme certidão de nascimento anexa.",
		children, pick(plural, "são", "é"), pick(plural, "filhos", "filho(a)"), respondent))

	mother := "sua genitora"
	if p.Representative.Name != "" {
		mother = "sua genitora, " + p.Representative.Name + ","
	}
	paras = append(paras, fmt.Sprintf("Atualmente, %s sob a guarda de fato de %s que arca sozinha com as despesas de alimentação, saúde, educação, vestuário e lazer.",
		pick(plural, "os requerentes residem", "o(a) requerente reside"), mother))

	if story := strings.TrimSpace(p.Story); story != "" {
		paras = append(paras, "Segundo relato da genitora: "+story)
	}

	switch {
	case p.Respondent.Employer != "":
		paras = append(paras, fmt.Sprintf("O requerido trabalha em %s, possuindo condições de contribuir para o sustento da prole.", p.Respondent.Employer))
	case p.Respondent.Occupation != "":
		paras = append(paras, fmt.Sprintf("O requerido exerce a atividade de %s, possuindo condições de contribuir para o sustento da prole.", p.Respondent.Occupation))
	default:
		paras = append(paras, "O requerido possui condições de contribuir para o sustento da prole, não podendo se eximir do dever de prestar alimentos.")
	}

	if p.Action == constants.ActionExecucaoAlimentos && p.HasDebtValue {
		paras = append(paras, fmt.Sprintf("Ocorre que o requerido deixou de adimplir a obrigação alimentar, acumulando débito de R$ %s (%s).",
			p.DebtValue.Format(), normalize.Extenso(p.DebtValue)))
	}

	if p.HasMonthlyValue {
		closing := fmt.Sprintf("Diante disso, pleiteia-se a fixação de alimentos no valor mensal de R$ %s (%s)",
			p.MonthlyValue.Format(), normalize.Extenso(p.MonthlyValue))
		if p.MinimumWagePercent > 0 {
			closing += fmt.Sprintf(", correspondente a %s%% do salário mínimo vigente", normalize.FormatDecimal(p.MinimumWagePercent))
		}
		closing += ", montante compatível com o binômio necessidade-possibilidade previsto no art. 1.694, § 1º, do Código Civil."
		paras = append(paras, closing)
	} else {
		paras = append(paras, "Diante disso, pleiteia-se a fixação de alimentos em valor compatível com o binômio necessidade-possibilidade previsto no art. 1.694, § 1º, do Código Civil.")
	}
	return strings.Join(paras, "\n\n")
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
