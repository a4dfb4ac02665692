package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// BuildDOCX returns a minimal .docx package with one paragraph per entry.
func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body bytes.Buffer
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)
	return zipDocument(t, body.Bytes())
}

func zipDocument(t *testing.T, documentXML []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write(documentXML)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type fakePDF struct {
	text  string
	pages int
}

func (f fakePDF) Text(context.Context, []byte) (string, int, error) { return f.text, f.pages, nil }

func TestExtractor_DOCX(t *testing.T) {
	e := NewExtractor(fakePDF{}, nil)
	res, err := e.Extract(context.Background(), buildDOCX(t, "Safety first", "Wear a helmet"), ".DOCX")
	require.NoError(t, err)
	assert.Equal(t, "Safety first\nWear a helmet", res.Text)
	assert.Equal(t, "docx-xml", res.Method)
}

func TestDocxText_IgnoresTabStopDefinitions(t *testing.T) {
	doc := zipDocument(t, []byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`+
		`<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/><w:tab w:val="right" w:pos="9360"/></w:tabs></w:pPr>`+
		`<w:r><w:rPr><w:b/></w:rPr><w:t>Step 1</w:t></w:r><w:r><w:tab/><w:t>Loosen the bolts</w:t><w:br/><w:t>by hand</w:t></w:r></w:p>`+
		`</w:body></w:document>`))

	text, err := docxText(doc)
	require.NoError(t, err)
	assert.Equal(t, "Step 1\tLoosen the bolts\nby hand\n", text)
}

func TestExtractor_RTF(t *testing.T) {
	doc := `{\rtf1\ansi{\fonttbl\f0\fswiss Helvetica;}{\*\generator Riched20;}\f0\pard Hello World\par Caf\'e9 \{ok\}\par}`
	e := NewExtractor(fakePDF{}, nil)
	res, err := e.Extract(context.Background(), []byte(doc), "rtf")
	require.NoError(t, err)
	assert.Equal(t, "Hello World\nCafé {ok}", res.Text)
}

func TestExtractor_PDFUsesReader(t *testing.T) {
	e := NewExtractor(fakePDF{text: "page one\n\n\n\npage two", pages: 2}, nil)
	res, err := e.Extract(context.Background(), []byte("%PDF"), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "page one\n\npage two", res.Text)
	assert.Equal(t, 2, res.Pages)
}

func TestExtractor_Unsupported(t *testing.T) {
	e := NewExtractor(fakePDF{}, nil)
	_, err := e.Extract(context.Background(), []byte("plain"), "txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestExtractor_BrokenDOCX(t *testing.T) {
	e := NewExtractor(fakePDF{}, nil)
	_, err := e.Extract(context.Background(), []byte("not a zip"), "docx")
	assert.Error(t, err)
}

type errPDF struct{ err error }

func (e errPDF) Text(context.Context, []byte) (string, int, error) { return "", 0, e.err }

func TestFallbackReader(t *testing.T) {
	ctx := context.Background()
	long := "This page has a proper text layer with enough characters."

	got, _, err := FallbackReader{Primary: fakePDF{text: long, pages: 1}, Secondary: fakePDF{text: "ocr"}}.Text(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, long, got)

	got, pages, err := FallbackReader{Primary: fakePDF{text: " \n", pages: 3}, Secondary: fakePDF{text: "scanned words", pages: 3}}.Text(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "scanned words", got)
	assert.Equal(t, 3, pages)

	got, _, err = FallbackReader{Primary: fakePDF{text: "tiny", pages: 1}, Secondary: errPDF{err: errors.New("no tesseract")}}.Text(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "tiny", got)
}
