// Пакет templates — встроенные HTML-шаблоны topicstore.
// Шаблоны встраиваются в бинарник через //go:embed и разбираются
// один раз при старте.
package templates

import (
	"embed"
	"html/template"
)

//go:embed *.html
var content embed.FS

// Parse разбирает все встроенные шаблоны.
func Parse() (*template.Template, error) {
	return template.ParseFS(content, "*.html")
}
