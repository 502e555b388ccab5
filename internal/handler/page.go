// Package handler turns HTTP requests into flow calls and flow results into
// JSON. Place and session handlers resolve the caller's Session and never
// reach a store themselves; error mapping lives in response.go.
package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sakif/park-places/internal/model"
	"github.com/sakif/park-places/internal/palette"
	"github.com/sakif/park-places/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageHandler serves the single page the two views live on.
// Templates are parsed once at startup and reused for every request.
type PageHandler struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewPageHandler parses the embedded page template.
func NewPageHandler(logger *slog.Logger) (*PageHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return nil, err
	}
	return &PageHandler{templates: tmpl, logger: logger}, nil
}

type pageData struct {
	Title        string
	Unselected   string
	Colors       []ColorOption
	InputMount   string
	DisplayMount string
}

// HandlePage renders the app shell: the form with its colour options and
// the two map mounts. Everything else is fetched from the JSON API.
//
// HTTP: GET /
func (h *PageHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title:        "Parking Places",
		Unselected:   string(model.ColorUnselected),
		InputMount:   service.InputMount,
		DisplayMount: service.DisplayMount,
	}
	for _, c := range model.Colors {
		data.Colors = append(data.Colors, ColorOption{Label: string(c), Presentation: palette.Present(string(c))})
	}

	// Set content type header BEFORE writing the body
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := h.templates.ExecuteTemplate(w, "page", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
