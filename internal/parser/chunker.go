package parser

// Split cuts text into windows of chunkSize runes where consecutive windows
// share exactly overlap runes. Nothing is trimmed, so dropping the first
// overlap runes of every window after the first reconstructs text.
func Split(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 || text == "" {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}

	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	var chunks []string
	for start := 0; ; start += step {
		end := min(start+chunkSize, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Join is the inverse of Split for the same overlap.
func Join(chunks []string, overlap int) string {
	if overlap < 0 {
		overlap = 0
	}
	var out []rune
	for i, c := range chunks {
		r := []rune(c)
		if i > 0 {
			r = r[min(overlap, len(r)):]
		}
		out = append(out, r...)
	}
	return string(out)
}
