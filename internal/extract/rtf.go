package extract

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// destinations whose content is never body text
var rtfSkipDestinations = map[string]bool{
	"fonttbl": true, "colortbl": true, "stylesheet": true, "info": true,
	"pict": true, "header": true, "footer": true, "listtable": true,
	"listoverridetable": true, "rsidtbl": true, "generator": true, "xmlnstbl": true,
	"themedata": true, "colorschememapping": true, "datastore": true, "latentstyles": true,
}

// rtfText strips control words and groups from an RTF document.
func rtfText(data []byte) (string, error) {
	s := string(data)
	if !strings.HasPrefix(strings.TrimSpace(s), `{\rtf`) {
		return "", fmt.Errorf("not an rtf document")
	}

	type frame struct{ skip bool }
	stack := []frame{{}}
	skipping := func() bool { return stack[len(stack)-1].skip }

	var b strings.Builder
	ucSkip := 0 // fallback chars to drop after \uN
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '{':
			stack = append(stack, frame{skip: skipping()})
		case '}':
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case '\\':
			if i+1 >= len(s) {
				break
			}
			next := s[i+1]
			switch {
			case next == '\\' || next == '{' || next == '}':
				if !skipping() {
					b.WriteByte(next)
				}
				i++
			case next == '*':
				stack[len(stack)-1].skip = true
				i++
			case next == '\'':
				if i+3 < len(s) {
					if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil && !skipping() {
						if ucSkip > 0 {
							ucSkip--
						} else {
							b.WriteRune(rune(v))
						}
					}
				}
				i += 3
			case isASCIILetter(next):
				j := i + 1
				for j < len(s) && isASCIILetter(s[j]) {
					j++
				}
				word := s[i+1 : j]
				k := j
				if k < len(s) && (s[k] == '-' || unicode.IsDigit(rune(s[k]))) {
					k++
					for k < len(s) && unicode.IsDigit(rune(s[k])) {
						k++
					}
				}
				param := s[j:k]
				if k < len(s) && s[k] == ' ' {
					k++ // delimiter space belongs to the control word
				}
				i = k - 1

				if rtfSkipDestinations[word] {
					stack[len(stack)-1].skip = true
					continue
				}
				if skipping() {
					continue
				}
				switch word {
				case "par", "line", "sect", "page":
					b.WriteByte('\n')
				case "tab":
					b.WriteByte('\t')
				case "u":
					if n, err := strconv.Atoi(param); err == nil {
						if n < 0 {
							n += 65536
						}
						b.WriteRune(rune(n))
						ucSkip = 1
					}
				}
			default:
				i++
			}
		case '\r', '\n':
		default:
			if skipping() {
				continue
			}
			if ucSkip > 0 {
				ucSkip--
				continue
			}
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
