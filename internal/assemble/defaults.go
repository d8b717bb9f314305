package assemble

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

const documentHead = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const documentTail = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1701" w:right="1134" w:bottom="1134" w:left="1701"/></w:sectPr></w:body></w:document>`

// PlainDocx builds a minimal DOCX with one paragraph per entry. Entries are written
// verbatim, so they may carry placeholders.
func PlainDocx(paragraphs ...string) ([]byte, error) {
	var doc strings.Builder
	doc.WriteString(documentHead)
	for _, p := range paragraphs {
		doc.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		doc.WriteString(xmlEscaper.Replace(p))
		doc.WriteString(`</w:t></w:r></w:p>`)
	}
	doc.WriteString(documentTail)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range []struct{ name, body string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/document.xml", doc.String()},
	} {
		w, err := zw.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", part.name, err)
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, fmt.Errorf("write %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var defaultParagraphs = map[constants.DocumentKind][]string{
	constants.DocPetition: {
		"EXCELENTÍSSIMO(A) SENHOR(A) DOUTOR(A) JUIZ(A) DE DIREITO DA VARA DE FAMÍLIA DA COMARCA DE {comarca}",
		"{tipo_acao}",
		"{nomes_assistidos}, {capacidade} por sua genitora {nome_representante}, {nacionalidade_representante}, {estado_civil_representante}, {profissao_representante}, inscrita no CPF sob o nº {cpf_representante}, residente em {endereco_representante}, vêm, por intermédio da {defensor}, propor a presente ação em face de {nome_requerido}, inscrito no CPF sob o nº {cpf_requerido}, residente em {endereco_requerido}, pelos fatos e fundamentos a seguir.",
		"{#dependentes}{indice}. {nome}, nascido(a) em {data_nascimento}{separador}{/dependentes}",
		"DOS FATOS",
		"{dos_fatos}",
		"DOS PEDIDOS",
		"Requer a fixação de alimentos em R$ {valor_mensal} ({valor_mensal_extenso}) mensais, equivalentes a {percentual_salario_minimo}% do salário mínimo, a serem depositados na conta {dados_bancarios}.",
		"Dá-se à causa o valor de R$ {valor_causa} ({valor_causa_extenso}).",
		"{comarca}, {data_atual}.",
		"{defensor}",
	},
	constants.DocDeclaration: {
		"TERMO DE DECLARAÇÃO",
		"Protocolo: {protocolo}",
		"Eu, {nome_representante}, inscrita no CPF sob o nº {cpf_representante}, residente em {endereco_representante}, telefone {telefone_representante}, declaro, para fins de assistência jurídica gratuita, que não possuo condições de arcar com as custas processuais sem prejuízo do sustento próprio e de minha família.",
		"Declaro ainda que {requerentes} {nomes_assistidos} {capacidade} por mim.",
		"{relato}",
		"{comarca}, {data_atual}.",
		"{nome_representante}",
	},
}

// DefaultTemplate returns the built-in template for kind.
func DefaultTemplate(kind constants.DocumentKind) ([]byte, error) {
	paras, ok := defaultParagraphs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no default for %s", ErrTemplateNotFound, kind)
	}
	return PlainDocx(paras...)
}
