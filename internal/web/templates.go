package web

import (
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pageFuncs = template.FuncMap{
	"cost": func(v float64) string { return fmt.Sprintf("%.5f", v) },
	"temp": func(v float64) string { return fmt.Sprintf("%.1f", v) },
}

func parsePageTemplate() (*template.Template, error) {
	tmpl, err := template.New("index.html.tmpl").Funcs(pageFuncs).ParseFS(templateFS, "templates/index.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	return tmpl, nil
}

type tierOption struct {
	Value   string
	Label   string
	Checked bool
}

type messageView struct {
	Role    string
	Content string
	HTML    template.HTML
}

type pageData struct {
	Title       string
	Version     string
	Tiers       []tierOption
	Temperature float64
	Messages    []messageView
	TotalCost   float64
	Costs       []float64
	Error       string
}
