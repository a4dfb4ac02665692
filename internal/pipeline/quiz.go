package pipeline

import (
	"regexp"
	"strings"
)

var (
	questionLine = regexp.MustCompile(`^(?:[Qq]:|\d+[.)])\s*(.+)$`)
	letterPrefix = regexp.MustCompile(`^[A-Za-z]\)\s*`)
)

type quizBlock struct {
	question string
	options  []string
	correct  []int
}

// ParseQuizMarkers reads the plain-text quiz format:
//
//	Q: What is the capital of France?
//	- Berlin
//	* Paris
//	- Rome
//
// A correct option starts with '*'; others start with '-' or a letter
// followed by ')'. Blocks end at a blank line. Questions without at least
// two options and exactly one correct option are dropped.
func ParseQuizMarkers(text string) []QuizQuestion {
	var out []QuizQuestion
	var cur *quizBlock

	flush := func() {
		if cur != nil && cur.question != "" && len(cur.options) >= 2 && len(cur.correct) == 1 {
			out = append(out, QuizQuestion{
				Question:     cur.question,
				Options:      cur.options,
				CorrectIndex: cur.correct[0],
			})
		}
		cur = nil
	}

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			flush()
			continue
		}
		if m := questionLine.FindStringSubmatch(line); m != nil {
			flush()
			cur = &quizBlock{question: strings.TrimSpace(m[1])}
			continue
		}
		if cur == nil {
			continue
		}
		switch {
		case strings.HasPrefix(line, "*"):
			opt := optionText(strings.TrimPrefix(line, "*"))
			if opt == "" {
				continue
			}
			cur.correct = append(cur.correct, len(cur.options))
			cur.options = append(cur.options, opt)
		case strings.HasPrefix(line, "-"):
			if opt := optionText(strings.TrimPrefix(line, "-")); opt != "" {
				cur.options = append(cur.options, opt)
			}
		case letterPrefix.MatchString(line):
			if opt := optionText(line); opt != "" {
				cur.options = append(cur.options, opt)
			}
		case len(cur.options) == 0:
			// wrapped question text
			cur.question += " " + line
		}
	}
	flush()
	return out
}

func optionText(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimSpace(letterPrefix.ReplaceAllString(s, ""))
}
