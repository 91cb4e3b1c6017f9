package templates

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/a-h/templ"
)

// ImportResult renders the counts of an import and its rejected rows.
func ImportResult(sum core.ImportSummary) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<div class="import-result" data-import-id="%s">`, templ.EscapeString(sum.ImportID))
		fmt.Fprintf(&b, `<p class="import-counts">%d of %d %s imported`,
			sum.ImportedCount, sum.TotalRecords, templ.EscapeString(sum.Entity))
		if sum.DryRun {
			b.WriteString(` (dry run)`)
		}
		b.WriteString(`</p>`)
		writeRejections(&b, sum.Rejected)
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// SessionStatus renders the phase of an import session, its detected
// format and, once finished, its result or error.
func SessionStatus(st core.SessionState) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<div class="session session-%s" id="session-%s">`,
			templ.EscapeString(string(st.Phase)), templ.EscapeString(st.ID))
		fmt.Fprintf(&b, `<p class="session-phase">%s</p>`, phaseLabel(st.Phase))
		if st.SourceName != "" || st.SourceSize > 0 {
			fmt.Fprintf(&b, `<p class="session-source">%s (%d bytes)</p>`,
				templ.EscapeString(sourceLabel(st.SourceName)), st.SourceSize)
		}
		if st.Format != "" {
			mode := "detected"
			if st.FormatManual {
				mode = "selected"
			}
			fmt.Fprintf(&b, `<p class="session-format">Format: %s (%s)</p>`,
				templ.EscapeString(strings.ToUpper(string(st.Format))), mode)
		}
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}

		switch {
		case st.ErrorMessage != "":
			if err := ErrorAlert(st.ErrorMessage, "", st.ErrorCode).Render(ctx, w); err != nil {
				return err
			}
		case st.Summary != nil:
			if err := ImportResult(*st.Summary).Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

// History renders past imports as a table, newest first.
func History(entity string, list []core.ImportSummary) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		if len(list) == 0 {
			fmt.Fprintf(&b, `<p class="history-empty">No imports of %s yet</p>`, templ.EscapeString(entity))
			_, err := io.WriteString(w, b.String())
			return err
		}

		b.WriteString(`<table class="history"><thead><tr><th>Started</th><th>Format</th><th>Imported</th><th>Rejected</th><th></th></tr></thead><tbody>`)
		for _, sum := range list {
			b.WriteString(`<tr>`)
			fmt.Fprintf(&b, `<td>%s</td>`, sum.StartedAt.UTC().Format(time.DateTime))
			fmt.Fprintf(&b, `<td>%s</td>`, templ.EscapeString(string(sum.Format)))
			fmt.Fprintf(&b, `<td>%d / %d</td>`, sum.ImportedCount, sum.TotalRecords)
			fmt.Fprintf(&b, `<td>%d</td>`, len(sum.Rejected))
			if len(sum.Rejected) > 0 {
				fmt.Fprintf(&b, `<td><a href="/api/imports/%s/%s/report.xlsx">Report</a></td>`,
					templ.EscapeString(sum.Entity), templ.EscapeString(sum.ImportID))
			} else {
				b.WriteString(`<td></td>`)
			}
			b.WriteString(`</tr>`)
		}
		b.WriteString(`</tbody></table>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeRejections(b *strings.Builder, rejected []core.Rejection) {
	if len(rejected) == 0 {
		return
	}
	b.WriteString(`<ul class="import-rejections">`)
	for _, r := range rejected {
		fmt.Fprintf(b, `<li>%s</li>`, templ.EscapeString(r.String()))
	}
	b.WriteString(`</ul>`)
}

func phaseLabel(p core.Phase) string {
	switch p {
	case core.PhaseIdle:
		return "Waiting for a file"
	case core.PhaseLoading:
		return "Reading file"
	case core.PhaseParsed:
		return "Ready to submit"
	case core.PhaseSubmitting:
		return "Importing"
	case core.PhaseDone:
		return "Import complete"
	case core.PhaseFailed:
		return "Import failed"
	}
	return string(p)
}

func sourceLabel(name string) string {
	if name == "" {
		return "pasted text"
	}
	return name
}
