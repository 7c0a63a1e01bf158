package web

import (
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Leonardo.Ai Image Generator</title>
<style>
body { font-family: sans-serif; max-width: 60em; margin: 2em auto; }
.ok { color: #1a7f37; }
.error { color: #cf222e; }
.warning { color: #9a6700; }
img { max-width: 100%; margin: 0.5em 0; }
</style>
</head>
<body>
<h1>Leonardo.Ai Image Generator</h1>
<form method="post" action="/generate">
<input type="text" name="prompt" size="60" placeholder="Enter your prompt" value="{{.Prompt}}">
<button type="submit">Generate Image</button>
</form>
{{if .Warning}}<p class="warning">{{.Warning}}</p>{{end}}
{{range .Lines}}<p class="{{if .OK}}ok{{else}}error{{end}}">{{.Text}}</p>
{{end}}
{{range .Images}}<img src="{{.}}" alt="generated image">
{{end}}
{{if .Outcome}}<p class="{{if .Failed}}error{{else}}ok{{end}}"><strong>{{.Outcome}}</strong></p>{{end}}
</body>
</html>
`

type renderer struct {
	templates *template.Template
}

func newRenderer() *renderer {
	return &renderer{
		templates: template.Must(template.New("index").Parse(pageTemplate)),
	}
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}
