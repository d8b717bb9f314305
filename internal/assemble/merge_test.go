package assemble

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/legalaid-petitions/constants"
	"github.com/joseph-ayodele/legalaid-petitions/internal/normalize"
	"github.com/joseph-ayodele/legalaid-petitions/internal/storage"
)

// rawDocx builds a docx whose document.xml body is written as-is.
func rawDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"[Content_Types].xml": contentTypesXML,
		"word/document.xml":   documentHead + body + documentTail,
		"word/footer1.xml":    `<w:ftr><w:p><w:r><w:t>Protocolo {protocolo}</w:t></w:r></w:p></w:ftr>`,
		"word/media/img.png":  "{nao_mexer}",
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, content); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func readPart(t *testing.T, docx []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	if err != nil {
		t.Fatalf("output is not a zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Name == name {
			s, err := readZipFile(f)
			if err != nil {
				t.Fatal(err)
			}
			return s
		}
	}
	t.Fatalf("part %s missing", name)
	return ""
}

func TestMergeSubstitutesAndFlagsPending(t *testing.T) {
	tpl := rawDocx(t, `<w:p><w:r><w:t>Autor: {nome} &amp; réu: {reu}. Vazio: {vazio}</w:t></w:r></w:p>`)
	out, rep, err := Merge(tpl, Data{Fields: map[string]string{
		"nome":      "Ana <Silva>",
		"vazio":     "  ",
		"protocolo": "202610171000001",
	}})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	doc := readPart(t, out, "word/document.xml")
	if !strings.Contains(doc, "Autor: Ana &lt;Silva&gt; &amp; réu: [PENDING]. Vazio: [PENDING]") {
		t.Fatalf("document = %s", doc)
	}
	if strings.Join(rep.Missing, ",") != "reu,vazio" {
		t.Fatalf("missing = %v", rep.Missing)
	}
	if footer := readPart(t, out, "word/footer1.xml"); !strings.Contains(footer, "Protocolo 202610171000001") {
		t.Fatalf("footer = %s", footer)
	}
	if media := readPart(t, out, "word/media/img.png"); media != "{nao_mexer}" {
		t.Fatalf("binary part rewritten: %s", media)
	}
}

func TestMergeJoinsSplitRuns(t *testing.T) {
	tpl := rawDocx(t, `<w:p><w:r><w:t>{</w:t></w:r><w:proofErr w:type="spellStart"/><w:r><w:rPr><w:b/></w:rPr><w:t>nome_</w:t></w:r><w:r><w:t>requerido}</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t>{ texto livre }</w:t></w:r></w:p>`)
	out, _, err := Merge(tpl, Data{Fields: map[string]string{"nome_requerido": "Carlos"}})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	doc := readPart(t, out, "word/document.xml")
	if !strings.Contains(doc, "<w:t>Carlos</w:t>") {
		t.Fatalf("document = %s", doc)
	}
	if !strings.Contains(doc, "{ texto livre }") {
		t.Fatalf("free text altered: %s", doc)
	}
}

func TestMergeExpandsLoop(t *testing.T) {
	tpl := rawDocx(t, `<w:p><w:r><w:t>Filhos: {#dependentes}{nome} ({idade}){separador} {/dependentes}Fim {comarca}</w:t></w:r></w:p>`)
	out, rep, err := Merge(tpl, Data{
		Fields: map[string]string{"comarca": "Teresina", "protocolo": "202610171000001"},
		Loops: map[string][]map[string]string{"dependentes": {
			{"nome": "Ana", "idade": "10 anos"},
			{"nome": "Bruno"},
		}},
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	doc := readPart(t, out, "word/document.xml")
	if !strings.Contains(doc, "Filhos: Ana (10 anos); Bruno ([PENDING]). Fim Teresina") {
		t.Fatalf("document = %s", doc)
	}
	if len(rep.Missing) != 1 || rep.Missing[0] != "idade" {
		t.Fatalf("missing = %v", rep.Missing)
	}
}

func TestMergeDoesNotResubstituteInsertedValues(t *testing.T) {
	tpl := rawDocx(t, `<w:p><w:r><w:t>{#dependentes}{nome}{separador}{/dependentes} Relato: {relato}</w:t></w:r></w:p>`)
	out, rep, err := Merge(tpl, Data{
		Fields: map[string]string{"protocolo": "202610171000001", "relato": "ele escreveu {comarca}", "comarca": "Teresina"},
		Loops: map[string][]map[string]string{"dependentes": {
			{"nome": "Ana {protocolo}"},
		}},
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	doc := readPart(t, out, "word/document.xml")
	if !strings.Contains(doc, "Ana &#123;protocolo&#125;. Relato: ele escreveu &#123;comarca&#125;") {
		t.Fatalf("document = %s", doc)
	}
	if strings.Contains(doc, "Teresina") || strings.Contains(doc, "Ana 202610171000001") {
		t.Fatalf("inserted value substituted again: %s", doc)
	}
	if len(rep.Missing) != 0 {
		t.Fatalf("missing = %v", rep.Missing)
	}
}

func TestMergeEmptyLoopRemovesSection(t *testing.T) {
	tpl := rawDocx(t, `<w:p><w:r><w:t>A{#dependentes}{nome}{/dependentes}B</w:t></w:r></w:p>`)
	out, _, err := Merge(tpl, Data{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if doc := readPart(t, out, "word/document.xml"); !strings.Contains(doc, "<w:t>AB</w:t>") {
		t.Fatalf("document = %s", doc)
	}
}

func TestMergeMultilineValue(t *testing.T) {
	tpl := rawDocx(t, `<w:p><w:r><w:t xml:space="preserve">{dos_fatos}</w:t></w:r></w:p>`)
	out, _, _ := Merge(tpl, Data{Fields: map[string]string{"dos_fatos": "um\n\ndois"}})
	doc := readPart(t, out, "word/document.xml")
	if strings.Count(doc, "<w:br/>") != 2 {
		t.Fatalf("document = %s", doc)
	}
}

func TestMergeRejectsNonDocx(t *testing.T) {
	if _, _, err := Merge([]byte("not a zip"), Data{}); !errors.Is(err, ErrInvalidTemplate) {
		t.Fatalf("err = %v", err)
	}
}

func TestAssembleDefaultPetition(t *testing.T) {
	n := normalize.NewNormalizer(normalize.Config{
		DefaultComarca: "Teresina",
		DefenderName:   "Defensoria Pública do Estado",
		MinimumWage:    1518,
		Now:            func() time.Time { return time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC) },
	}, nil)
	p, err := n.Normalize("202610171000001", []byte(`{
		"nome_representante": "Maria da Silva",
		"nome_assistido": "Ana Silva",
		"data_nascimento_assistido": "01/05/2016",
		"outros_filhos": [{"nome": "Bruno Silva", "data_nascimento": "15/01/2009"}],
		"nome_requerido": "Carlos Pereira",
		"valor_mensal_pensao": "1.500,00"
	}`))
	if err != nil {
		t.Fatal(err)
	}

	a := NewAssembler(BuiltinLoader{}, nil)
	out, err := a.Assemble(context.Background(), constants.DocPetition, p, "Os fatos.")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	doc := readPart(t, out, "word/document.xml")
	for _, want := range []string{
		"COMARCA DE Teresina",
		"AÇÃO DE ALIMENTOS",
		"Ana Silva e Bruno Silva, neste ato representados e assistidos por sua genitora Maria da Silva",
		"1. Ana Silva, nascido(a) em 01/05/2016;",
		"2. Bruno Silva, nascido(a) em 15/01/2009.",
		"Os fatos.",
		"R$ 18.000,00 (dezoito mil reais)",
		"17 de outubro de 2026",
		"[PENDING]",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("petition missing %q:\n%s", want, doc)
		}
	}
}

func TestFSLoaderPrefersActionVariantAndEvicts(t *testing.T) {
	dir := t.TempDir()
	generic, _ := PlainDocx("generic")
	specific, _ := PlainDocx("execucao")
	if err := os.WriteFile(filepath.Join(dir, "peticao_inicial.docx"), generic, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "peticao_inicial_execucao_alimentos.docx"), specific, 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := NewFSLoader(dir, true, nil)
	if err != nil {
		t.Fatalf("NewFSLoader: %v", err)
	}
	defer l.Close()

	ctx := context.Background()
	b, err := l.Load(ctx, constants.DocPetition, constants.ActionExecucaoAlimentos)
	if err != nil || !bytes.Equal(b, specific) {
		t.Fatalf("specific: err=%v", err)
	}
	b, err = l.Load(ctx, constants.DocPetition, constants.ActionGuarda)
	if err != nil || !bytes.Equal(b, generic) {
		t.Fatalf("generic: err=%v", err)
	}
	if _, err := l.Load(ctx, constants.DocDeclaration, ""); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("missing: err=%v", err)
	}

	updated, _ := PlainDocx("generic v2")
	if err := os.WriteFile(filepath.Join(dir, "peticao_inicial.docx"), updated, 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		b, _ = l.Load(ctx, constants.DocPetition, constants.ActionGuarda)
		if bytes.Equal(b, updated) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cache was not evicted after write")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestBlobLoaderAndChain(t *testing.T) {
	store := storage.NewMemoryStore()
	tpl, _ := PlainDocx("from blob")
	ctx := context.Background()
	if err := store.Upload(ctx, "templates/termo_declaracao.docx", tpl, constants.DocxMediaType); err != nil {
		t.Fatal(err)
	}

	chain := Chain{NewBlobLoader(store, "templates"), BuiltinLoader{}}
	b, err := chain.Load(ctx, constants.DocDeclaration, constants.ActionFixacaoAlimentos)
	if err != nil || !bytes.Equal(b, tpl) {
		t.Fatalf("blob: err=%v", err)
	}
	b, err = chain.Load(ctx, constants.DocPetition, "")
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	if !strings.Contains(readPart(t, b, "word/document.xml"), "{dos_fatos}") {
		t.Fatal("builtin petition template not served")
	}
}
