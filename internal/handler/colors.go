package handler

import (
	"net/http"

	"github.com/sakif/park-places/internal/model"
	"github.com/sakif/park-places/internal/palette"
)

// ColorOption is one entry of the registration form's colour select.
type ColorOption struct {
	Label        string               `json:"label"`
	Presentation palette.Presentation `json:"presentation"`
}

// HandleListColors returns the selectable colours in form order.
//
// HTTP: GET /api/colors
func HandleListColors(w http.ResponseWriter, r *http.Request) {
	opts := make([]ColorOption, 0, len(model.Colors))
	for _, c := range model.Colors {
		opts = append(opts, ColorOption{Label: string(c), Presentation: palette.Present(string(c))})
	}
	writeJSON(w, http.StatusOK, opts)
}

// HandlePresentColor returns the swatch for any label, known or not.
//
// HTTP: GET /api/colors/{label}
func HandlePresentColor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, palette.Present(r.PathValue("label")))
}
