package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQuizMarkers(t *testing.T) {
	text := `Q: What is the capital of France?
- Berlin
* Paris
- Rome

1. Which are primary colours?
A) Green
*B) Red

Q: Two correct answers are rejected
* One
* Two

Q: Single option is rejected
* Only

Q: No correct answer is rejected
- a
- b

Q: Long question
that wraps
- no
* yes`

	got := ParseQuizMarkers(text)
	assert.Equal(t, []QuizQuestion{
		{Question: "What is the capital of France?", Options: []string{"Berlin", "Paris", "Rome"}, CorrectIndex: 1},
		{Question: "Which are primary colours?", Options: []string{"Green", "Red"}, CorrectIndex: 1},
		{Question: "Long question that wraps", Options: []string{"no", "yes"}, CorrectIndex: 1},
	}, got)
}

func TestParseQuizMarkers_Garbage(t *testing.T) {
	assert.Empty(t, ParseQuizMarkers("I cannot help with that."))
	assert.Empty(t, ParseQuizMarkers(""))
}
