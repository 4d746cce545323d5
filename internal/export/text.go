package export

import "strings"

const TextFilename = "sentences.txt"

// Text joins sentence texts with newlines, in the order given.
func Text(sentences []Sentence) *Result {
	lines := make([]string, len(sentences))
	for i, s := range sentences {
		lines[i] = s.Text
	}
	return &Result{
		Data:     []byte(strings.Join(lines, "\n")),
		Filename: TextFilename,
		MimeType: "text/plain; charset=utf-8",
	}
}
