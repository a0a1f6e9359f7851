package usecase

import (
	"log/slog"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

// MatchResult is the first qualifying parent, if any, plus the number of
// candidate documents that could not be inspected on the way.
type MatchResult struct {
	Parent           *domain.ParentFolder
	InspectionErrors int
}

func (r MatchResult) Found() bool {
	return r.Parent != nil
}

// DocumentLoader reads the matching view of a candidate parent.
type DocumentLoader func(domain.ParentFolder) (domain.ParentDocument, error)

// Matcher finds the weekend invoice a trip belongs to. It never mutates storage.
type Matcher struct {
	logger *slog.Logger
}

func NewMatcher(logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{logger: logger}
}

// Match returns the first candidate, in the order given, whose date is not
// before the trip date and whose document mentions the trip code.
//
// Candidates are not ranked: with several qualifying parents the winner depends
// on directory enumeration order, not on date proximity.
func (m *Matcher) Match(trip domain.TripRecord, candidates []domain.ParentFolder, load DocumentLoader) MatchResult {
	var result MatchResult
	code := trip.Code
	if code == "" {
		code = trip.Key.Code
	}
	if code == "" {
		return result
	}

	for i := range candidates {
		candidate := candidates[i]
		if candidate.Date.Before(trip.Key.Date) {
			continue
		}
		doc, err := load(candidate)
		if err != nil {
			if domain.IsKind(err, domain.ErrNotFound) {
				continue
			}
			result.InspectionErrors++
			m.logger.Warn("parent_document_malformed",
				"business", candidate.Business,
				"folder", candidate.Name,
				"trip_key", trip.Key.String(),
				"error", err,
			)
			continue
		}
		if doc.Mentions(code) {
			result.Parent = &candidate
			return result
		}
	}
	return result
}
