package differ

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/aleister1102/siteguardian/internal/common"

	"github.com/sergi/go-diff/diffmatchpatch"
)

//go:embed templates/diff_report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/diff_report.html.tmpl"))

type reportData struct {
	Title   string
	Summary string
	Body    template.HTML
}

// RenderHTMLReport renders a color-coded line diff of two text versions as a
// standalone HTML page.
func RenderHTMLReport(previous, current []byte, title string) (string, error) {
	oldText, err := decodeText(previous)
	if err != nil {
		return "", err
	}
	newText, err := decodeText(current)
	if err != nil {
		return "", err
	}

	diffs := Changes(oldText, newText)
	var buf bytes.Buffer
	err = reportTemplate.Execute(&buf, reportData{
		Title:   title,
		Summary: summarize(diffs),
		Body:    diffHTML(diffs),
	})
	if err != nil {
		return "", common.WrapError(err, "failed to render diff report")
	}
	return buf.String(), nil
}

func diffHTML(diffs []diffmatchpatch.Diff) template.HTML {
	var sb strings.Builder
	for _, d := range diffs {
		escaped := template.HTMLEscapeString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			sb.WriteString("<ins>" + escaped + "</ins>")
		case diffmatchpatch.DiffDelete:
			sb.WriteString("<del>" + escaped + "</del>")
		default:
			sb.WriteString(escaped)
		}
	}
	return template.HTML(sb.String())
}

func summarize(diffs []diffmatchpatch.Diff) string {
	added, removed := 0, 0
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			removed += countLines(d.Text)
		}
	}
	if added == 0 && removed == 0 {
		return "No textual changes detected."
	}
	return fmt.Sprintf("%d lines added (+), %d lines removed (-).", added, removed)
}
