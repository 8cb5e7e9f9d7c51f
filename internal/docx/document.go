// Package docx reads the text of Office Open XML word-processing containers.
package docx

import (
	"archive/zip"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/joseph-ayodele/doctext/internal/common"
)

// DocumentPart is the zip entry holding the main document body.
const DocumentPart = "word/document.xml"

// maxDocumentPartBytes caps the uncompressed size of the document part.
const maxDocumentPartBytes = 256 << 20

// Document is the ordered list of body paragraphs of a container.
type Document struct {
	Paragraphs []string
}

// Text joins paragraphs with a newline; empty paragraphs become empty lines.
func (d Document) Text() string {
	return strings.Join(d.Paragraphs, "\n")
}

type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract opens the container at path and returns its body paragraphs.
// Any failure is an ExtractionError of kind ParseFailure and no partial document is returned.
func (e *Extractor) Extract(_ context.Context, path string) (Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		e.logger.Warn("docx.open.failed", "path", path, "error", err)
		return Document{}, parseFailure(err)
	}
	defer func() {
		if cerr := zr.Close(); cerr != nil {
			e.logger.Debug("docx.close.failed", "path", path, "error", cerr)
		}
	}()

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == DocumentPart {
			part = f
			break
		}
	}
	if part == nil {
		return Document{}, common.NewExtractionError(common.KindParseFailure,
			fmt.Sprintf("%s not found in the archive", DocumentPart), nil)
	}
	if part.UncompressedSize64 > maxDocumentPartBytes {
		return Document{}, common.NewExtractionError(common.KindParseFailure,
			fmt.Sprintf("%s is too large (%d bytes)", DocumentPart, part.UncompressedSize64), nil)
	}

	rc, err := part.Open()
	if err != nil {
		return Document{}, parseFailure(err)
	}
	defer rc.Close()

	root, err := xmlquery.Parse(rc)
	if err != nil {
		e.logger.Warn("docx.parse.failed", "path", path, "error", err)
		return Document{}, parseFailure(err)
	}

	body := childElement(childElement(root, "document"), "body")
	if body == nil {
		return Document{}, common.NewExtractionError(common.KindParseFailure, "document body not found", nil)
	}

	doc := Document{Paragraphs: []string{}}
	for n := body.FirstChild; n != nil; n = n.NextSibling {
		if isElement(n, "p") {
			doc.Paragraphs = append(doc.Paragraphs, paragraphText(n))
		}
	}
	e.logger.Debug("docx.extract.ok", "path", path, "paragraphs", len(doc.Paragraphs))
	return doc, nil
}

func parseFailure(err error) *common.ExtractionError {
	return common.NewExtractionError(common.KindParseFailure, "", err)
}

// paragraphText concatenates the runs of a paragraph, including runs inside hyperlinks.
func paragraphText(p *xmlquery.Node) string {
	var sb strings.Builder
	for n := p.FirstChild; n != nil; n = n.NextSibling {
		switch {
		case isElement(n, "r"):
			writeRun(&sb, n)
		case isElement(n, "hyperlink"):
			for r := n.FirstChild; r != nil; r = r.NextSibling {
				if isElement(r, "r") {
					writeRun(&sb, r)
				}
			}
		}
	}
	return sb.String()
}

func writeRun(sb *strings.Builder, r *xmlquery.Node) {
	for n := r.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.ElementNode {
			continue
		}
		switch n.Data {
		case "t":
			sb.WriteString(n.InnerText())
		case "tab", "ptab":
			sb.WriteByte('\t')
		case "br":
			// page and column breaks carry no text
			switch attrLocal(n, "type") {
			case "", "textWrapping":
				sb.WriteByte('\n')
			}
		case "cr":
			sb.WriteByte('\n')
		case "noBreakHyphen":
			sb.WriteByte('-')
		}
	}
}

func isElement(n *xmlquery.Node, local string) bool {
	return n != nil && n.Type == xmlquery.ElementNode && n.Data == local
}

func childElement(n *xmlquery.Node, local string) *xmlquery.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, local) {
			return c
		}
	}
	return nil
}

func attrLocal(n *xmlquery.Node, local string) string {
	for _, a := range n.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
