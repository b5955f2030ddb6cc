// -----------------------------------------------------------------------
// Text extraction from uploaded documents
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package generators

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/socratic/internal/interfaces"
)

// ExtractorSet routes extraction to the extractor that supports the
// file's extension.
type ExtractorSet struct {
	extractors []interfaces.TextExtractor
}

// NewExtractorSet creates an extractor set covering PDF and DOCX
func NewExtractorSet(logger arbor.ILogger) *ExtractorSet {
	return &ExtractorSet{
		extractors: []interfaces.TextExtractor{
			NewPDFExtractor(logger),
			NewDocxExtractor(logger),
		},
	}
}

// Supports reports whether any registered extractor handles ext
func (s *ExtractorSet) Supports(ext string) bool {
	for _, e := range s.extractors {
		if e.Supports(ext) {
			return true
		}
	}
	return false
}

// ExtractText extracts text using the extractor matching the file extension
func (s *ExtractorSet) ExtractText(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range s.extractors {
		if e.Supports(ext) {
			return e.ExtractText(ctx, path)
		}
	}
	return "", fmt.Errorf("unsupported file type: %s", ext)
}

// PDFExtractor extracts text from PDF documents using pdfcpu
type PDFExtractor struct {
	logger  arbor.ILogger
	tempDir string
}

// Compile-time interface assertion
var _ interfaces.TextExtractor = (*PDFExtractor)(nil)

// NewPDFExtractor creates a new PDF extractor
func NewPDFExtractor(logger arbor.ILogger) *PDFExtractor {
	tempDir := filepath.Join(os.TempDir(), "socratic-extract")
	os.MkdirAll(tempDir, 0755)

	return &PDFExtractor{
		logger:  logger,
		tempDir: tempDir,
	}
}

func (e *PDFExtractor) Supports(ext string) bool {
	return ext == ".pdf"
}

// contentPageMarker is the infix pdfcpu uses when it writes one
// decoded content stream per page: <basename>_Content_page_<n>.txt
const contentPageMarker = "_Content_page_"

// ExtractText extracts all text content from the PDF at path
func (e *PDFExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF context: %w", err)
	}

	pageCount := pdfCtx.PageCount

	// Per-call scratch dir so concurrent extractions never share files
	outDir, err := os.MkdirTemp(e.tempDir, "pages_")
	if err != nil {
		return "", fmt.Errorf("failed to create extraction directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		pageNum, ok := contentPageNumber(file.Name())
		if !ok {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		// The files hold raw content-stream operators, not plain text
		pageTexts[pageNum] = contentStreamText(content)
	}

	var fullText strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text, ok := pageTexts[pageNum]
		if !ok || text == "" {
			continue
		}
		if fullText.Len() > 0 {
			fullText.WriteString("\n\n")
		}
		fullText.WriteString(text)
	}

	e.logger.Debug().
		Str("path", filepath.Base(path)).
		Int("page_count", pageCount).
		Int("text_length", fullText.Len()).
		Msg("Extracted PDF text")

	return fullText.String(), nil
}

// contentPageNumber parses the page number out of a pdfcpu content
// file name like notes_Content_page_3.txt
func contentPageNumber(name string) (int, bool) {
	idx := strings.LastIndex(name, contentPageMarker)
	if idx < 0 {
		return 0, false
	}
	numStr := name[idx+len(contentPageMarker):]
	numStr = strings.TrimSuffix(numStr, filepath.Ext(numStr))
	pageNum, err := strconv.Atoi(numStr)
	if err != nil || pageNum < 1 {
		return 0, false
	}
	return pageNum, true
}

// contentStreamText pulls the string operands of the text-showing
// operators (Tj, TJ, ', ") out of a decoded PDF content stream.
// Strings operand to any other operator are discarded. Hex strings are
// skipped: they carry CID-encoded bytes that are not readable without
// the font's CMap.
func contentStreamText(data []byte) string {
	var out strings.Builder
	var pending []string

	flush := func(sep byte) {
		if len(pending) == 0 {
			return
		}
		if out.Len() > 0 {
			out.WriteByte(sep)
		}
		for _, s := range pending {
			out.WriteString(s)
		}
		pending = pending[:0]
	}

	i := 0
	for i < len(data) {
		c := data[i]
		switch {
		case c == '(':
			s, next := parsePDFString(data, i)
			pending = append(pending, s)
			i = next
		case c == '<':
			j := i + 1
			for j < len(data) && data[j] != '>' {
				j++
			}
			i = j + 1
		case c == '%':
			for i < len(data) && data[i] != '\n' {
				i++
			}
		case c == '\'' || c == '"':
			// The ' and " operators move to the next line, then show
			flush('\n')
			i++
		case isPDFRegular(c):
			start := i
			for i < len(data) && isPDFRegular(data[i]) {
				i++
			}
			switch string(data[start:i]) {
			case "Tj", "TJ":
				flush(' ')
			default:
				// Strings operand to anything else are not shown text
				pending = pending[:0]
			}
		default:
			i++
		}
	}

	return strings.TrimSpace(out.String())
}

// parsePDFString decodes one parenthesized PDF string literal starting
// at data[start] == '('. It returns the decoded text and the index
// just past the closing parenthesis.
func parsePDFString(data []byte, start int) (string, int) {
	var b strings.Builder
	depth := 0
	i := start
	for i < len(data) {
		c := data[i]
		switch c {
		case '\\':
			if i+1 >= len(data) {
				return b.String(), i + 1
			}
			i++
			switch data[i] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
				// Rare control escapes, dropped
			case '\n':
				// Line continuation
			case '(', ')', '\\':
				b.WriteByte(data[i])
			default:
				if data[i] >= '0' && data[i] <= '7' {
					// Octal escape, up to three digits
					val := 0
					digits := 0
					for i < len(data) && digits < 3 && data[i] >= '0' && data[i] <= '7' {
						val = val*8 + int(data[i]-'0')
						i++
						digits++
					}
					i--
					b.WriteByte(byte(val))
				} else {
					b.WriteByte(data[i])
				}
			}
			i++
		case '(':
			depth++
			if depth > 1 {
				b.WriteByte(c)
			}
			i++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}

// isPDFRegular reports whether c can appear in an operator token
func isPDFRegular(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '*'
}

// DocxExtractor extracts text from DOCX documents. A DOCX file is a
// zip archive; the document body lives in word/document.xml.
type DocxExtractor struct {
	logger arbor.ILogger
}

var _ interfaces.TextExtractor = (*DocxExtractor)(nil)

// NewDocxExtractor creates a new DOCX extractor
func NewDocxExtractor(logger arbor.ILogger) *DocxExtractor {
	return &DocxExtractor{logger: logger}
}

func (e *DocxExtractor) Supports(ext string) bool {
	return ext == ".docx"
}

// ExtractText extracts the text content of the DOCX at path
func (e *DocxExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX archive: %w", err)
	}
	defer reader.Close()

	var docFile *zip.File
	for _, f := range reader.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("invalid DOCX: missing word/document.xml")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer rc.Close()

	text, err := e.parseDocumentXML(rc)
	if err != nil {
		return "", err
	}

	e.logger.Debug().
		Str("path", filepath.Base(path)).
		Int("text_length", len(text)).
		Msg("Extracted DOCX text")

	return text, nil
}

// parseDocumentXML streams document.xml, collecting w:t text runs and
// inserting newlines at paragraph boundaries.
func (e *DocxExtractor) parseDocumentXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var builder strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("failed to parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				builder.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				builder.Write(t)
			}
		}
	}

	return strings.TrimSpace(builder.String()), nil
}
