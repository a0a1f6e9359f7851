package usecase

import (
	"regexp"
	"strings"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

// invoiceFeature is one recognisable field of an invoice layout. A feature
// scores once when any of its patterns occurs in the text.
type invoiceFeature struct {
	name     string
	patterns []*regexp.Regexp
}

func feature(name string, patterns ...string) invoiceFeature {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return invoiceFeature{name: name, patterns: compiled}
}

var weekendFeatures = []invoiceFeature{
	feature("rfc_emisor", `rfc\s*emisor`, `emisor\s*rfc`, `rfc`),
	feature("folio_fiscal", `folio\s*fiscal`, `uuid`, `folio`),
	feature("cfdi", `cfdi`, `comprobante`),
	feature("conceptos", `conceptos?`, `descripci[oó]n`),
	feature("nombre_receptor", `nombre\s*receptor`, `receptor`),
	feature("rfc_receptor", `rfc\s*receptor`, `receptor\s*rfc`),
	feature("metodo_pago", `m[eé]todo\s*(de\s*)?pago`, `forma\s*(de\s*)?pago`),
	feature("moneda", `moneda`, `divisa`),
}

var tripFeatures = []invoiceFeature{
	feature("clave", `clave`),
	feature("peso_bruto", `peso\s*bruto`, `bruto`),
	feature("peso_tara", `peso\s*tara`, `tara`),
	feature("tipo_material", `tipo\s*material`, `material`),
	feature("recibido", `recibido`),
	feature("pacas", `pacas`),
	feature("tipo_documento", `tipo\s*documento`, `documento`),
	feature("placas", `placas`),
	feature("salida", `salida`),
	feature("tipo_movimiento", `tipo\s*movimiento`, `movimiento`),
	feature("porcentaje_no_aptos", `%\s*no\s*aptos`, `no\s*aptos`, `porcentaje`),
	feature("peso_neto", `peso\s*neto`, `neto`),
	feature("humedad", `humedad`),
}

// InvoiceScores holds the keyword score of each invoice layout.
type InvoiceScores struct {
	Weekend int
	Trip    int
}

// DetectInvoiceType scores the recognized text against both layouts. Ties and
// texts with no recognisable field resolve to a weekend invoice.
func DetectInvoiceType(text string) (domain.InvoiceType, InvoiceScores) {
	lower := strings.ToLower(text)
	scores := InvoiceScores{
		Weekend: scoreFeatures(lower, weekendFeatures),
		Trip:    scoreFeatures(lower, tripFeatures),
	}
	if scores.Trip > scores.Weekend {
		return domain.InvoiceTrip, scores
	}
	return domain.InvoiceWeekend, scores
}

func scoreFeatures(text string, features []invoiceFeature) int {
	score := 0
	for _, f := range features {
		for _, pattern := range f.patterns {
			if pattern.MatchString(text) {
				score++
				break
			}
		}
	}
	return score
}
