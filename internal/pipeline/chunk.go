package pipeline

// DefaultChunkSize is the character budget of one AI call.
const DefaultChunkSize = 9000

// Chunk splits text into pieces of at most size characters.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
