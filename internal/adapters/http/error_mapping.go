package httpadapter

import (
	"net/http"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrUnsupportedInvoice):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrFileConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrMalformedRecord):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrNotStarted), domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
