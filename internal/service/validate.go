// Package service holds the per-user flows behind the HTTP API.
//
// RegistrationFlow validates and stores new places, ListingFlow renders and
// deletes them, and Sessions hands each signed-in user one of each bound to
// that user's PlaceStore. Flows take repository.PlaceStore, so the same code
// runs on every backend and on the in-memory fake used in tests.
package service

import (
	"strings"

	"github.com/sakif/park-places/internal/apperror"
	"github.com/sakif/park-places/internal/model"
)

// ValidatePlace checks the three required form fields and returns a draft.
//
// Rules:
//   - color must not be blank or the "..." placeholder of the form's select
//   - section and number must not be blank once trimmed
//
// Any other colour label is accepted as-is (it will be painted grey).
// The returned draft carries trimmed section/number and no coordinate;
// attaching one is the caller's job.
func ValidatePlace(color, section, number string) (model.PlaceDraft, error) {
	c := strings.TrimSpace(color)
	if c == "" || model.Color(c) == model.ColorUnselected {
		return model.PlaceDraft{}, apperror.EmptyField("color")
	}

	section = strings.TrimSpace(section)
	if section == "" {
		return model.PlaceDraft{}, apperror.EmptyField("section")
	}

	number = strings.TrimSpace(number)
	if number == "" {
		return model.PlaceDraft{}, apperror.EmptyField("number")
	}

	return model.PlaceDraft{
		Color:   model.Color(color),
		Section: section,
		Number:  number,
	}, nil
}
