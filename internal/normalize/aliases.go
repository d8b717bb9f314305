package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Intake forms evolved over time; each canonical field accepts every key it has been submitted under.
var (
	aliasRepName       = []string{"nome_representante", "nomeRepresentante", "representante_nome", "representante.nome", "nome_mae", "nome_genitora"}
	aliasRepCPF        = []string{"cpf_representante", "cpfRepresentante", "representante_cpf", "representante.cpf", "cpf_mae"}
	aliasRepRG         = []string{"rg_representante", "rgRepresentante", "representante.rg"}
	aliasRepBirth      = []string{"data_nascimento_representante", "dataNascimentoRepresentante", "representante.data_nascimento"}
	aliasRepAddress    = []string{"endereco_representante", "enderecoRepresentante", "representante.endereco", "endereco", "endereco_assistido"}
	aliasRepPhone      = []string{"telefone_representante", "representante.telefone", "telefone", "whatsapp"}
	aliasRepEmail      = []string{"email_representante", "representante.email", "email"}
	aliasRepOccupation = []string{"profissao_representante", "profissaoRepresentante", "representante.profissao"}
	aliasRepMarital    = []string{"estado_civil_representante", "estadoCivilRepresentante", "representante.estado_civil"}
	aliasRepNation     = []string{"nacionalidade_representante", "representante.nacionalidade"}

	aliasRespName       = []string{"nome_requerido", "nomeRequerido", "requerido_nome", "requerido.nome", "nome_pai", "nome_genitor"}
	aliasRespCPF        = []string{"cpf_requerido", "cpfRequerido", "requerido.cpf"}
	aliasRespAddress    = []string{"endereco_requerido", "enderecoRequerido", "requerido.endereco"}
	aliasRespOccupation = []string{"profissao_requerido", "profissaoRequerido", "requerido.profissao", "ocupacao_requerido"}
	aliasRespPhone      = []string{"telefone_requerido", "telefoneRequerido", "requerido.telefone"}
	aliasRespEmployer   = []string{"empregador_requerido", "empregadorRequerido", "requerido.empregador", "local_trabalho_requerido"}

	aliasChildName  = []string{"nome_assistido", "nomeAssistido", "nome_crianca", "assistido.nome", "requerente.nome", "nome"}
	aliasChildCPF   = []string{"cpf_assistido", "cpfAssistido", "assistido.cpf", "requerente.cpf"}
	aliasChildBirth = []string{"data_nascimento_assistido", "dataNascimentoAssistido", "nascimento_assistido", "assistido.data_nascimento", "data_nascimento"}

	aliasDependents = []string{"outros_filhos", "outrosFilhos", "filhos", "dependentes", "outros_filhos_detalhes"}
	aliasDepName    = []string{"nome", "nome_completo", "nomeCompleto"}
	aliasDepCPF     = []string{"cpf"}
	aliasDepBirth   = []string{"data_nascimento", "dataNascimento", "nascimento"}

	aliasMonthly  = []string{"valor_mensal_pensao", "valorMensalPensao", "valor_pensao", "valor_pedido", "valor_alimentos", "valor_mensal"}
	aliasPercent  = []string{"percentual_salario_minimo", "percentualSalarioMinimo"}
	aliasDebt     = []string{"valor_debito", "valorDebito", "valor_atrasado", "debito_total"}
	aliasComarca  = []string{"comarca", "cidade_assinatura", "cidadeAssinatura", "cidade"}
	aliasStory    = []string{"relato", "relato_texto", "relatoTexto", "historico", "descricao_caso", "relato_fatos"}
	aliasAction   = []string{"tipo_acao", "tipoAcao", "acao_especifica", "acaoEspecifica"}
	aliasBank     = []string{"dados_bancarios", "dadosBancarios", "conta_bancaria"}
	aliasCustody  = []string{"guarda", "situacao_guarda", "guarda_atual"}
	aliasDeadline = []string{"data_vencimento", "dia_pagamento", "diaPagamento"}
)

// lookup resolves a dotted key against a decoded JSON object.
func lookup(raw map[string]any, key string) (any, bool) {
	if v, ok := raw[key]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(key, ".")
	if !found {
		return nil, false
	}
	inner, ok := raw[head].(map[string]any)
	if !ok {
		return nil, false
	}
	return lookup(inner, rest)
}

// first returns the first alias holding a non-empty value.
func first(raw map[string]any, aliases []string) (any, bool) {
	for _, key := range aliases {
		v, ok := lookup(raw, key)
		if !ok || isEmpty(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

// firstString is first() coerced to a trimmed string.
func firstString(raw map[string]any, aliases []string) string {
	v, ok := first(raw, aliases)
	if !ok {
		return ""
	}
	return scalarString(v)
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

// scalarString renders strings, numbers and booleans; composite values yield "".
func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "sim"
		}
		return "não"
	case int, int64:
		return fmt.Sprint(x)
	}
	return ""
}
