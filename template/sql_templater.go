package template

import (
	"bytes"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"join": strings.Join,
	// placeholders renders n positional parameters: "?, ?, ?".
	"placeholders": func(n int) string {
		if n <= 0 {
			return ""
		}
		return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
	},
	// quote renders double-quoted identifiers: "A", "B".
	"quote": func(names []string) string {
		quoted := make([]string, len(names))
		for i, n := range names {
			quoted[i] = `"` + strings.ReplaceAll(n, `"`, `""`) + `"`
		}
		return strings.Join(quoted, ", ")
	},
}

// ExecuteSqlTemplate reads templatePath from fsys and renders it with params.
func ExecuteSqlTemplate(fsys fs.FS, templatePath string, params any) (string, error) {
	content, err := ReadSqlTemplate(fsys, templatePath)
	if err != nil {
		return "", err
	}
	return Render(templatePath, content, params)
}

// Render executes a SQL template held in memory. Missing map keys are errors.
func Render(name, content string, params any) (string, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// ReadSqlTemplate reads a SQL template file and returns its contents as a string
func ReadSqlTemplate(fsys fs.FS, templatePath string) (string, error) {
	content, err := fs.ReadFile(fsys, templatePath)
	if err != nil {
		return "", fmt.Errorf("failed to read template file: %w", err)
	}
	return string(content), nil
}
