package server

import (
	"embed"
	"html/template"
	"log"
)

//go:embed templates
var templateFS embed.FS

// loadTemplates は埋め込みテンプレートを読み込む
func loadTemplates() *template.Template {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		log.Fatalf("埋め込みテンプレートの読み込みに失敗: %v", err)
	}
	return tmpl
}
