// Package docxtest builds minimal word-processing containers for tests.
package docxtest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"os"
	"strings"
)

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`</Types>`

// Paragraph renders a plain paragraph with one run per entry; an empty call yields <w:p/>.
func Paragraph(runs ...string) string {
	if len(runs) == 0 {
		return "<w:p/>"
	}
	var sb strings.Builder
	sb.WriteString("<w:p>")
	for _, r := range runs {
		sb.WriteString(`<w:r><w:t xml:space="preserve">`)
		_ = xml.EscapeText(&sb, []byte(r))
		sb.WriteString("</w:t></w:r>")
	}
	sb.WriteString("</w:p>")
	return sb.String()
}

// DocumentXML wraps raw body children in a w:document envelope.
func DocumentXML(bodyChildren ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><w:body>` +
		strings.Join(bodyChildren, "") +
		`<w:sectPr/></w:body></w:document>`
}

// Build zips the given parts into a container.
func Build(parts map[string]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// FromParagraphs returns a container whose body holds one plain paragraph per string.
func FromParagraphs(paragraphs ...string) []byte {
	rendered := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p == "" {
			rendered = append(rendered, Paragraph())
			continue
		}
		rendered = append(rendered, Paragraph(p))
	}
	return FromBody(rendered...)
}

// FromBody returns a container whose body holds the raw XML children.
func FromBody(bodyChildren ...string) []byte {
	return Build(map[string]string{
		"[Content_Types].xml": contentTypes,
		"word/document.xml":   DocumentXML(bodyChildren...),
	})
}

// WriteFile writes a container to path.
func WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o600)
}
