package constants

import (
	"strings"
)

// ActionType is the kind of family-law action a case asks for.
type ActionType string

const (
	ActionFixacaoAlimentos  ActionType = "fixacao_alimentos"
	ActionExecucaoAlimentos ActionType = "execucao_alimentos"
	ActionRevisaoAlimentos  ActionType = "revisao_alimentos"
	ActionGuarda            ActionType = "guarda"
	ActionDivorcio          ActionType = "divorcio"
	ActionOther             ActionType = "outra"
)

var allActions = []ActionType{
	ActionFixacaoAlimentos,
	ActionExecucaoAlimentos,
	ActionRevisaoAlimentos,
	ActionGuarda,
	ActionDivorcio,
	ActionOther,
}

// actionDigits is the case-type digit embedded in protocol numbers.
var actionDigits = map[ActionType]int{
	ActionFixacaoAlimentos:  1,
	ActionExecucaoAlimentos: 2,
	ActionRevisaoAlimentos:  3,
	ActionGuarda:            4,
	ActionDivorcio:          5,
	ActionOther:             9,
}

// ActionTitles are the headings used in generated petitions.
var actionTitles = map[ActionType]string{
	ActionFixacaoAlimentos:  "AÇÃO DE ALIMENTOS",
	ActionExecucaoAlimentos: "AÇÃO DE EXECUÇÃO DE ALIMENTOS",
	ActionRevisaoAlimentos:  "AÇÃO REVISIONAL DE ALIMENTOS",
	ActionGuarda:            "AÇÃO DE GUARDA",
	ActionDivorcio:          "AÇÃO DE DIVÓRCIO",
	ActionOther:             "AÇÃO DE FAMÍLIA",
}

// AsStringSlice lists every action type.
func AsStringSlice() []string {
	result := make([]string, len(allActions))
	for i, a := range allActions {
		result[i] = string(a)
	}
	return result
}

// Digit returns the protocol digit for the action.
func (a ActionType) Digit() int {
	if d, ok := actionDigits[a]; ok {
		return d
	}
	return actionDigits[ActionOther]
}

// Title returns the petition heading for the action.
func (a ActionType) Title() string {
	if t, ok := actionTitles[a]; ok {
		return t
	}
	return actionTitles[ActionOther]
}

// ActionFromDigit is the inverse of Digit.
func ActionFromDigit(d int) (ActionType, bool) {
	for a, v := range actionDigits {
		if v == d {
			return a, true
		}
	}
	return ActionOther, false
}

// Canonicalize maps free-form intake values onto an ActionType.
func Canonicalize(input string) (ActionType, bool) {
	if input == "" {
		return ActionFixacaoAlimentos, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	synonyms := map[string]ActionType{
		"alimentos":                ActionFixacaoAlimentos,
		"pensao":                   ActionFixacaoAlimentos,
		"pensão":                   ActionFixacaoAlimentos,
		"pensao_alimenticia":       ActionFixacaoAlimentos,
		"pensão_alimentícia":       ActionFixacaoAlimentos,
		"fixacao_de_alimentos":     ActionFixacaoAlimentos,
		"fixação_de_alimentos":     ActionFixacaoAlimentos,
		"execucao":                 ActionExecucaoAlimentos,
		"execução":                 ActionExecucaoAlimentos,
		"cobranca_pensao":          ActionExecucaoAlimentos,
		"execucao_de_alimentos":    ActionExecucaoAlimentos,
		"revisao":                  ActionRevisaoAlimentos,
		"revisão":                  ActionRevisaoAlimentos,
		"revisional":               ActionRevisaoAlimentos,
		"revisao_de_alimentos":     ActionRevisaoAlimentos,
		"guarda_compartilhada":     ActionGuarda,
		"guarda_unilateral":        ActionGuarda,
		"divorcio_consensual":      ActionDivorcio,
		"divórcio":                 ActionDivorcio,
		"divorcio_litigioso":       ActionDivorcio,
	}

	if a, ok := synonyms[normalized]; ok {
		return a, true
	}
	for _, a := range allActions {
		if normalized == string(a) {
			return a, true
		}
	}
	return ActionOther, false
}
