package cli

import (
	"fmt"
	"text/template"
)

const usageTemplate = `
CropScan Client

Usage:
  cropscan [OPTIONS] COMMAND

Options:
  --version                    Show version information
  --server URL                 Server URL (default: http://localhost:8080)
  --db PATH                    Path to local database (default: cropscan-client.db)

Commands:
  register                Register new user
  login                   Login to server
  logout                  Logout and delete local session
  status                  Show authentication status
  scan <image>            Upload a leaf photo for analysis
  show <scan-id>          Show a scan result from the server
  history                 List scans made from this machine

Examples:
  cropscan register
  cropscan login
  cropscan scan ./tomato-leaf.jpg
  cropscan show b692f5c0-2d88-4aa1-a9e1-13aa6e4976d5
  cropscan --server https://cropscan.example.com login
`

const scanTemplate = `
=== Scan Result ===

ID:         {{ .ID }}
Disease:    {{ .Disease }}
Confidence: {{ percent .Confidence }}
Severity:   {{ .Severity }}
Scanned:    {{ .CreatedAt.Local.Format "2006-01-02 15:04:05" }}
{{- if .Source }}
Image:      {{ .Source }}
{{- end }}
{{- if .Treatment }}

Treatment:
{{- range $i, $step := .Treatment }}
  {{ inc $i }}. {{ $step }}
{{- end }}
{{- else }}

No treatment required.
{{- end }}
`

const historyTemplate = `
=== Scan History ===

{{- if eq (len .) 0 }}
No scans found.

Use 'cropscan scan <image>' to analyze your first leaf.

{{ else }}
Found {{ len . }} scan(s):

{{- range . }}
- {{ .Disease }} ({{ percent .Confidence }}, {{ .Severity }})
   ID:      {{ .ID }}
   Scanned: {{ .CreatedAt.Local.Format "2006-01-02 15:04" }}
   {{- if .Source }}
   Image:   {{ .Source }}
   {{- end }}

{{- end }}
Use 'cropscan show <id>' to view treatment details.
{{- end }}
`

var templateFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"percent": func(v float64) string {
		return fmt.Sprintf("%.1f%%", v*100)
	},
}

var (
	usageTmpl   = template.Must(template.New("usage").Parse(usageTemplate))
	scanTmpl    = template.Must(template.New("scan").Funcs(templateFuncs).Parse(scanTemplate))
	historyTmpl = template.Must(template.New("history").Funcs(templateFuncs).Parse(historyTemplate))
)
