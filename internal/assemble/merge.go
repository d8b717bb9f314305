// Package assemble fills DOCX templates with case data.
package assemble

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Pending marks placeholders that had no value.
const Pending = "[PENDING]"

var ErrInvalidTemplate = errors.New("invalid docx template")

var (
	// a brace pair whose contents may be split across Word runs
	reSplitTag = regexp.MustCompile(`\{(?:[^{}<]|<[^>]*>)*?\}`)
	reXMLTag   = regexp.MustCompile(`<[^>]*>`)
	reKey      = regexp.MustCompile(`^[#/]?[A-Za-z_][A-Za-z0-9_.]*$`)
	reLoopOpen = regexp.MustCompile(`\{#([A-Za-z_][A-Za-z0-9_]*)\}`)
	reField    = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.]*)\}`)

	reMergeable = regexp.MustCompile(`^word/(document|header\d*|footer\d*|footnotes|endnotes)\.xml$`)
)

// Data is what a template is merged with.
type Data struct {
	Fields map[string]string
	// Loops maps a section name to one field set per repetition.
	Loops map[string][]map[string]string
}

// Report lists the placeholders that were rendered as Pending.
type Report struct {
	Missing []string
}

// Merge substitutes every {key} in the document, header and footer parts of a DOCX
// and expands {#name}…{/name} sections. It never writes anywhere.
func Merge(template []byte, data Data) ([]byte, Report, error) {
	zr, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, Report{}, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	missing := map[string]struct{}{}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	sawDocument := false
	for _, f := range zr.File {
		if !reMergeable.MatchString(f.Name) {
			if err := zw.Copy(f); err != nil {
				return nil, Report{}, fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}
		if f.Name == "word/document.xml" {
			sawDocument = true
		}
		content, err := readZipFile(f)
		if err != nil {
			return nil, Report{}, fmt.Errorf("%w: read %s: %v", ErrInvalidTemplate, f.Name, err)
		}
		merged := mergeXML(content, data, missing)

		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: f.Method, Modified: f.Modified})
		if err != nil {
			return nil, Report{}, fmt.Errorf("write %s: %w", f.Name, err)
		}
		if _, err := io.WriteString(w, merged); err != nil {
			return nil, Report{}, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	if !sawDocument {
		return nil, Report{}, fmt.Errorf("%w: word/document.xml missing", ErrInvalidTemplate)
	}
	if err := zw.Close(); err != nil {
		return nil, Report{}, fmt.Errorf("close docx: %w", err)
	}

	rep := Report{Missing: make([]string, 0, len(missing))}
	for k := range missing {
		rep.Missing = append(rep.Missing, k)
	}
	sort.Strings(rep.Missing)
	return buf.Bytes(), rep, nil
}

func readZipFile(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func mergeXML(xml string, data Data, missing map[string]struct{}) string {
	xml = joinSplitTags(xml)
	xml = expandLoops(xml, data, missing)
	return substitute(xml, data.Fields, missing)
}

// joinSplitTags drops run markup that Word inserted inside a placeholder.
func joinSplitTags(xml string) string {
	return reSplitTag.ReplaceAllStringFunc(xml, func(m string) string {
		if !strings.Contains(m, "<") {
			return m
		}
		inner := strings.TrimSpace(reXMLTag.ReplaceAllString(m[1:len(m)-1], ""))
		if !reKey.MatchString(inner) {
			return m
		}
		return "{" + inner + "}"
	})
}

func expandLoops(xml string, data Data, missing map[string]struct{}) string {
	for {
		loc := reLoopOpen.FindStringSubmatchIndex(xml)
		if loc == nil {
			return xml
		}
		name := xml[loc[2]:loc[3]]
		closeTag := "{/" + name + "}"
		end := strings.Index(xml[loc[1]:], closeTag)
		if end < 0 {
			// unterminated section: drop the opening tag and keep going
			xml = xml[:loc[0]] + xml[loc[1]:]
			continue
		}
		body := xml[loc[1] : loc[1]+end]
		items := data.Loops[name]

		var b strings.Builder
		for i, item := range items {
			fields := make(map[string]string, len(data.Fields)+len(item)+2)
			for k, v := range data.Fields {
				fields[k] = v
			}
			for k, v := range item {
				fields[k] = v
			}
			fields["indice"] = strconv.Itoa(i + 1)
			if i < len(items)-1 {
				fields["separador"] = ";"
			} else {
				fields["separador"] = "."
			}
			b.WriteString(substitute(body, fields, missing))
		}
		xml = xml[:loc[0]] + b.String() + xml[loc[1]+end+len(closeTag):]
	}
}

func substitute(xml string, fields map[string]string, missing map[string]struct{}) string {
	return reField.ReplaceAllStringFunc(xml, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := fields[key]
		if !ok || strings.TrimSpace(v) == "" {
			missing[key] = struct{}{}
			return Pending
		}
		return escapeText(v)
	})
}

// escapeText XML-escapes v and turns line breaks into Word breaks inside the current run.
func escapeText(v string) string {
	var b strings.Builder
	v = strings.ReplaceAll(v, "\r\n", "\n")
	for i, line := range strings.Split(v, "\n") {
		if i > 0 {
			b.WriteString(`</w:t><w:br/><w:t xml:space="preserve">`)
		}
		b.WriteString(valueEscaper.Replace(line))
	}
	return b.String()
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")

// valueEscaper also turns braces into character references so an inserted value is
// never read as a placeholder by a later pass.
var valueEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;", "{", "&#123;", "}", "&#125;")
