// Package report renders a run summary as Markdown and sanitized HTML.
package report

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ericfisherdev/veeamdump/internal/domain/model"
	"github.com/ericfisherdev/veeamdump/internal/domain/table"
)

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

const page = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>%s</title></head>
<body>
%s</body>
</html>
`

// Markdown builds the run summary document. Every value that came from the
// target host is escaped so it renders as literal text.
func Markdown(s *model.RunSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# veeamdump run %s\n\n", escape(s.RunID))
	fmt.Fprintf(&b, "- **Host:** %s\n", escape(s.Host))
	fmt.Fprintf(&b, "- **Action:** %s\n", escape(string(s.Action)))
	if !s.Started.IsZero() {
		fmt.Fprintf(&b, "- **Started:** %s\n", s.Started.UTC().Format(time.RFC3339))
	}
	if !s.Finished.IsZero() && !s.Started.IsZero() {
		fmt.Fprintf(&b, "- **Duration:** %s\n", s.Finished.Sub(s.Started).Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "- **Recovered:** %d\n", s.Recovered())

	for _, p := range s.Products {
		writeProduct(&b, p)
	}
	return b.String()
}

func writeProduct(b *strings.Builder, p model.ProductRun) {
	t := p.Target
	fmt.Fprintf(b, "\n## %s\n\n", escape(t.Product.FullName()))
	fmt.Fprintf(b, "- **Build:** %s\n", escape(t.Build.String()))
	if t.Era != "" {
		fmt.Fprintf(b, "- **Era:** %s\n", escape(string(t.Era)))
	}
	if p.Conn.InstancePath != "" {
		fmt.Fprintf(b, "- **Database:** %s on %s (%s)\n",
			escape(p.Conn.Database), escape(p.Conn.InstancePath), escape(string(p.Conn.Auth)))
	}
	if p.Err != nil {
		fmt.Fprintf(b, "- **Error:** %s\n", escape(p.Err.Error()))
	}

	o := p.Outcome
	if o == nil {
		return
	}

	b.WriteString("\n| Processed | Blank | DPAPI | AES | Failed | Rows | Secrets |\n")
	b.WriteString("|---:|---:|---:|---:|---:|---:|---:|\n")
	fmt.Fprintf(b, "| %d | %d | %d | %d | %d | %d | %d |\n",
		o.Processed, o.Blank, o.DecryptedHostService, o.DecryptedLegacy, o.Failed, o.ResultRows, o.ResultSecrets)

	if o.Result == nil || o.Result.Len() == 0 {
		return
	}

	header := o.Result.Header()
	b.WriteString("\n|")
	for _, h := range header {
		fmt.Fprintf(b, " %s |", escape(h))
	}
	b.WriteString("\n|")
	for range header {
		b.WriteString("---|")
	}
	b.WriteByte('\n')
	for i := 0; i < o.Result.Len(); i++ {
		row := o.Result.Row(i)
		b.WriteByte('|')
		for _, h := range header {
			fmt.Fprintf(b, " %s |", escape(row.Value(h)))
		}
		b.WriteByte('\n')
	}
}

// escape backslash-escapes ASCII punctuation and flattens line breaks so a
// value stays inside its table cell or list item.
func escape(s string) string {
	s = table.StripNUL(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\r' || r == '\n':
			b.WriteByte(' ')
		case r < 0x80 && strings.ContainsRune("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", r):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LootMarkdown lists what the sinks hold for one run.
func LootMarkdown(l *model.RunLoot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# veeamdump loot %s\n\n", escape(l.RunID))
	b.WriteString("## Credentials\n\n")
	if len(l.Credentials) == 0 {
		b.WriteString("None recorded.\n")
	} else {
		b.WriteString("| Username | Secret | Service | Address | Port | Realm | Origin |\n")
		b.WriteString("|---|---|---|---|---:|---|---|\n")
		for _, c := range l.Credentials {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %s | %s |\n",
				escape(c.Username), escape(c.Secret), escape(c.Service.Name), escape(c.Service.Address),
				c.Service.Port, escape(c.Service.Realm), escape(c.Origin))
		}
	}

	b.WriteString("\n## Artifacts\n\n")
	if len(l.Artifacts) == 0 {
		b.WriteString("None recorded.\n")
		return b.String()
	}
	b.WriteString("| Type | File | Label | Bytes |\n")
	b.WriteString("|---|---|---|---:|\n")
	for _, a := range l.Artifacts {
		fmt.Fprintf(&b, "| %s | %s | %s | %d |\n",
			escape(a.LootType), escape(a.FileName), escape(a.Label), len(a.Data))
	}
	return b.String()
}

// HTML renders the summary to a sanitized standalone page.
func HTML(s *model.RunSummary) (string, error) {
	return render("veeamdump run "+s.RunID, Markdown(s))
}

// LootHTML renders a loot listing to a sanitized standalone page.
func LootHTML(l *model.RunLoot) (string, error) {
	return render("veeamdump loot "+l.RunID, LootMarkdown(l))
}

func render(title, md string) (string, error) {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return fmt.Sprintf(page, htmlSanitizer.Sanitize(title), htmlSanitizer.Sanitize(buf.String())), nil
}

// WriteFile writes the HTML report to path. Reports may contain recovered
// secrets, so the file is created owner-only.
func WriteFile(path string, s *model.RunSummary) error {
	out, err := HTML(s)
	if err != nil {
		return err
	}
	return writeHTML(path, out)
}

// WriteLootFile writes the HTML loot listing to path, owner-only.
func WriteLootFile(path string, l *model.RunLoot) error {
	out, err := LootHTML(l)
	if err != nil {
		return err
	}
	return writeHTML(path, out)
}

func writeHTML(path, out string) error {
	if err := os.WriteFile(path, []byte(out), 0o600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
