package kb

import (
	"github.com/out-of-cheese-error/gooseberry/internal/models"
	"github.com/out-of-cheese-error/gooseberry/internal/render"
)

// Template names the renderer is expected to carry.
const (
	TemplateAnnotation = "annotation"
	TemplatePage       = "page"
	TemplateIndexLink  = "index_link"
)

const defaultAnnotationTemplate = `### {{ date "2006-01-02" .created }}{{ if .title }} - {{ .title }}{{ end }}

{{ range .highlight }}> {{ . }}

{{ end }}{{ if .text }}{{ .text }}

{{ end }}{{ if .tags }}Tags: {{ join ", " .tags }}

{{ end }}[Open]({{ urlencodeSpaces .incontext }})

`

const defaultPageTemplate = `# {{ .name }}

{{ .annotations }}`

const defaultIndexLinkTemplate = `- [{{ .name }}]({{ urlencodeSpaces .path }})
`

// DefaultTemplates returns the built-in Markdown templates.
func DefaultTemplates() map[string]string {
	return map[string]string{
		TemplateAnnotation: defaultAnnotationTemplate,
		TemplatePage:       defaultPageTemplate,
		TemplateIndexLink:  defaultIndexLinkTemplate,
	}
}

// NewRenderer builds a renderer from the defaults merged with the
// user's overrides. An override with an empty body keeps the default.
func NewRenderer(overrides map[string]string) (render.Renderer, error) {
	templates := DefaultTemplates()
	for name, body := range overrides {
		if body != "" {
			templates[name] = body
		}
	}
	return render.New(templates)
}

// annotationContext exposes one annotation to the templates. Every key
// is always present so that missingkey=error only fires on typos.
func annotationContext(a models.Annotation) map[string]any {
	return map[string]any{
		"id":           a.ID,
		"uri":          a.URI,
		"base_uri":     a.BaseURI(),
		"incontext":    a.Incontext(),
		"title":        a.Title,
		"quote":        a.Quote,
		"highlight":    a.Highlight,
		"text":         a.Text,
		"tags":         a.Tags,
		"created":      a.Created,
		"updated":      a.Updated,
		"user":         a.User,
		"display_name": a.DisplayName,
		"group":        a.Group,
		"group_name":   a.GroupName,
	}
}
