package receipt

import (
	_ "embed"
	"html/template"
	"io"
)

//go:embed receipt.html.tmpl
var htmlSource string

var htmlTemplate = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"shortDate": ShortDate,
}).Parse(htmlSource))

func RenderHTML(w io.Writer, r Receipt) error {
	return htmlTemplate.Execute(w, r)
}
