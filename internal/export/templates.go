package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var sentencesTemplate = template.Must(template.New("sentences.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).ParseFS(templateFS, "templates/sentences.html"))

// TemplateData holds data for sentence list rendering
type TemplateData struct {
	Title       string
	Group       string
	GeneratedAt time.Time
	Sentences   []Sentence
}

// RenderSentencesHTML renders the sentence list page. Sentence text is
// escaped; it is user input.
func RenderSentencesHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := sentencesTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
