package templates

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"churn-dashboard/internal/models"
)

const DashboardTitle = "Bank Members Exited Dashboard"

//go:embed *.html
var files embed.FS

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"rgba":        rgba,
	"captionText": func(text string) captionData { return captionData{Text: text} },
}).ParseFS(files, "*.html"))

type DashboardData struct {
	Title   string
	Cards   []models.Card
	Options models.FilterOptions
}

type captionData struct {
	Text  string
	Error bool
}

func Dashboard(data DashboardData) templ.Component {
	if data.Title == "" {
		data.Title = DashboardTitle
	}
	return render("dashboard", data)
}

// Cards renders the summary cards container, patched by id.
func Cards(cards []models.Card) templ.Component {
	return render("cards", cards)
}

// GeographyCaption renders the line under the pie chart describing the
// active filter, or the reason the chart could not be refreshed.
func GeographyCaption(text string) templ.Component {
	return render("caption", captionData{Text: text})
}

func GeographyError(text string) templ.Component {
	return render("caption", captionData{Text: text, Error: true})
}

func render(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return pages.ExecuteTemplate(w, name, data)
	})
}

func rgba(c models.RGB) template.CSS {
	return template.CSS(fmt.Sprintf("rgba(%d, %d, %d, 0.6)", c[0], c[1], c[2]))
}
