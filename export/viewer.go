package export

import (
	"bytes"
	"html/template"
)

// viewerTemplate is the static HTML viewer included in bundle exports. It
// references the two top-level animations by relative filename and needs no
// network access.
var viewerTemplate = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2rem auto; max-width: 60rem; color: #222; }
h1 { font-size: 1.4rem; }
p.meta { color: #666; font-size: 0.9rem; }
section { margin-bottom: 2rem; }
img { max-width: 100%; border: 1px solid #ccc; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{if .Description}}<p>{{.Description}}</p>{{end}}
<p class="meta">{{.FrameCount}} frames, {{.DurationMS}} ms, {{.ClickCount}} clicks</p>
<section>
<h2>Palette animation</h2>
<img src="{{.GIFName}}" alt="palette animation">
</section>
<section>
<h2>Full-color animation</h2>
<img src="{{.APNGName}}" alt="full-color animation">
</section>
</body>
</html>
`))

type viewerData struct {
	Title       string
	Description string
	FrameCount  int
	DurationMS  int64
	ClickCount  int
	GIFName     string
	APNGName    string
}

func viewerHTML(data viewerData) ([]byte, error) {
	var buf bytes.Buffer
	if err := viewerTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
