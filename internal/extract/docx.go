package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBody = "word/document.xml"

// docxText reads the main document part of a .docx package. Paragraphs
// become lines; tabs and breaks are kept.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	var part *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			part = f
			break
		}
	}
	if part == nil {
		return "", fmt.Errorf("open docx: missing %s", docxBody)
	}
	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", docxBody, err)
	}
	defer rc.Close()

	var b strings.Builder
	dec := xml.NewDecoder(rc)
	inText := false
	runs := 0 // tab stops in paragraph properties share the "tab" name
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", docxBody, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r":
				runs++
			case "t":
				inText = true
			case "tab":
				if runs > 0 {
					b.WriteByte('\t')
				}
			case "br", "cr":
				if runs > 0 {
					b.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				runs--
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
