package ollama

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
	"github.com/shopspring/decimal"
)

const (
	defaultUnitType = "Unidad de servicio"
	satQRBaseURL    = "https://verificacfdi.facturaelectronica.sat.gob.mx/default.aspx?id="
)

var (
	uuidPattern      = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	csdPattern       = regexp.MustCompile(`(?i)No\.?\s*de\s*serie\s*del\s*CSD[^\d]*(\d{10,})`)
	conceptPattern   = regexp.MustCompile(`\b(\d{8})\s+([A-Z0-9]{2,3})\b`)
	sacCodePattern   = regexp.MustCompile(`\bSAC\d+\b`)
	retentionPattern = regexp.MustCompile(`(?i)(?:retenci[oó]n|retenido|ret\.)[^\d$]*\$?\s*([\d,]+\.\d{2})`)
)

// Extractor turns OCR text into typed factures through the generation model.
type Extractor struct {
	client *Client
}

func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

func (e *Extractor) ExtractTrip(ctx context.Context, text string) (domain.FactureTrip, error) {
	raw, err := e.client.generateJSON(ctx, tripSystemPrompt, buildExtractionPrompt(text))
	if err != nil {
		return domain.FactureTrip{}, err
	}
	obj, err := decodeLooseObject(raw)
	if err != nil {
		return domain.FactureTrip{}, domain.WrapError(domain.ErrMalformedRecord, "extract trip", err)
	}
	if obj.str("name_business") == "" {
		return domain.FactureTrip{}, domain.WrapError(domain.ErrInvalidInput, "extract trip", errors.New("model found no business name"))
	}
	return mapTrip(obj, text), nil
}

func (e *Extractor) ExtractWeekend(ctx context.Context, text string) (domain.FactureWeekend, error) {
	raw, err := e.client.generateJSON(ctx, weekendSystemPrompt, buildExtractionPrompt(text))
	if err != nil {
		return domain.FactureWeekend{}, err
	}
	obj, err := decodeLooseObject(raw)
	if err != nil {
		return domain.FactureWeekend{}, domain.WrapError(domain.ErrMalformedRecord, "extract weekend", err)
	}
	if obj.str("rfc_emisor") == "" || obj.str("tax_folio") == "" {
		return domain.FactureWeekend{}, domain.WrapError(domain.ErrInvalidInput, "extract weekend", errors.New("model found no issuer rfc or tax folio"))
	}
	facture := mapWeekend(obj)
	applyWeekendCorrections(&facture, text)
	return facture, nil
}

func mapTrip(obj looseObject, text string) domain.FactureTrip {
	trip := domain.FactureTrip{
		BusinessName:        obj.str("name_business"),
		BusinessRegion:      obj.str("business_region"),
		BusinessLocation:    obj.str("business_ubication"),
		Key:                 obj.str("key"),
		Code:                obj.str("code_facture"),
		MaterialType:        obj.str("type_material"),
		MovementType:        obj.str("type_movement"),
		Bales:               obj.int("cuantity_bales"),
		Container:           obj.int("container"),
		DocumentType:        obj.str("type_document"),
		Supplier:            obj.str("proveedor"),
		TransportName:       obj.str("name_transport"),
		OperatorName:        obj.str("name_operator"),
		Plates:              obj.str("plates"),
		TripLocation:        obj.str("ubication_trip"),
		GrossWeight:         obj.float("gross_weight"),
		TareWeight:          obj.float("tare_weight"),
		NetWeight:           obj.float("net_weight"),
		NotSuitable:         obj.float("not_suitable"),
		ForbiddenWeight:     obj.float("forbiden_weight"),
		Humidity:            obj.float("humidity"),
		NotSuitableDiscount: obj.float("kg_desc_not_suitable"),
		ForbiddenDiscount:   obj.float("kg_desc_forbiden"),
		HumidityDiscount:    obj.float("kg_desc_humidity"),
		AcceptedWeight:      obj.float("kg_desc_accepted_weight"),
	}
	if trip.NetWeight == 0 && trip.GrossWeight > trip.TareWeight {
		trip.NetWeight = trip.GrossWeight - trip.TareWeight
	}

	textDates := datesInText(text)
	pick := func(key string, fallback func() (domain.Timestamp, bool)) domain.Timestamp {
		if t, ok := obj.time(key); ok {
			return domain.NewTimestamp(t)
		}
		if ts, ok := fallback(); ok {
			return ts
		}
		return domain.Timestamp{}
	}
	first := func() (domain.Timestamp, bool) {
		if len(textDates) == 0 {
			return domain.Timestamp{}, false
		}
		return domain.NewTimestamp(textDates[0]), true
	}
	trip.EnteredAt = pick("date_entry", first)
	trip.ExitedAt = pick("date_exit", first)
	trip.ReceivedAt = pick("recibes_trip", func() (domain.Timestamp, bool) {
		if len(textDates) == 0 {
			return domain.Timestamp{}, false
		}
		return domain.NewTimestamp(latest(textDates)), true
	})
	return trip
}

func mapWeekend(obj looseObject) domain.FactureWeekend {
	facture := domain.FactureWeekend{
		IssuerRFC:          obj.str("rfc_emisor"),
		IssuerName:         obj.str("name_emisor"),
		ReceiverRFC:        obj.str("rfc_receptor"),
		ReceiverName:       obj.str("name_receptor"),
		ReceiverPostalCode: obj.str("postal_code_receptor"),
		TaxFolio:           obj.str("tax_folio"),
		CSDNumber:          obj.str("no_csd"),
		IssuerPostalCode:   obj.str("postal_code_emisor"),
		Currency:           obj.str("type_money"),
		PaymentType:        obj.str("type_pay"),
		PaymentMethod:      obj.str("method_pay"),
		Subtotal:           obj.decimal("subtotal"),
		TransferredTaxes:   obj.decimal("transferred_taxes"),
		WithheldTaxes:      obj.decimal("stoped_taxes"),
		Total:              obj.decimal("total"),
		QRURL:              obj.str("url_qr"),
		Description:        obj.str("description"),
	}
	if t, ok := obj.time("datetime_emisor"); ok {
		facture.IssuedAt = domain.NewTimestamp(t)
	}
	for _, c := range obj.objects("concepts") {
		concept := domain.TripConcept{
			ProductCode: c.str("product_code"),
			Trips:       c.int("cuantity_trips"),
			UnitKey:     c.str("key_unit"),
			UnitType:    c.str("type_unit"),
			UnitValue:   c.decimal("value_unit"),
			TotalAmount: c.decimal("import_total"),
			Description: c.str("description"),
			Duties:      []domain.ConceptDuty{},
		}
		if discount := c.str("discount"); discount != "" {
			concept.Discount = &discount
		}
		for _, d := range c.objects("dutys_of_concept") {
			concept.Duties = append(concept.Duties, domain.ConceptDuty{
				Duty:              d.str("duty"),
				DutyType:          d.str("type_duty"),
				BaseAmount:        d.decimal("base_import"),
				FactorType:        d.str("type_factor"),
				RateFee:           d.str("rate_fee"),
				AmountWithFeeRate: d.decimal("import_with_fee_rate"),
			})
		}
		concept.Taxable = c.boolean("object_duty") || len(concept.Duties) > 0
		facture.Concepts = append(facture.Concepts, concept)
	}
	return facture
}

// applyWeekendCorrections overrides model output with values the OCR text
// states verbatim. The model regularly garbles long identifiers.
func applyWeekendCorrections(f *domain.FactureWeekend, text string) {
	if folio := uuidPattern.FindString(text); folio != "" {
		f.TaxFolio = strings.ToUpper(folio)
	}
	if m := csdPattern.FindStringSubmatch(text); m != nil {
		f.CSDNumber = m[1]
	}

	conceptMatch := conceptPattern.FindStringSubmatch(text)
	for i := range f.Concepts {
		c := &f.Concepts[i]
		if conceptMatch != nil {
			c.ProductCode = conceptMatch[1]
			c.UnitKey = conceptMatch[2]
		}
		if strings.TrimSpace(c.UnitType) == "" {
			c.UnitType = defaultUnitType
		}
		if trips := countSACCodes(c.Description); trips > 0 {
			c.Trips = trips
		}
		if c.Trips < 1 {
			c.Trips = 1
		}
		if c.TotalAmount.IsPositive() {
			c.UnitValue = c.TotalAmount.Div(decimal.NewFromInt(int64(c.Trips))).Round(2)
		}
	}

	if withheld, ok := withheldFromText(text); ok {
		f.WithheldTaxes = withheld
	} else if f.WithheldTaxes.IsZero() {
		implied := f.Subtotal.Add(f.TransferredTaxes).Sub(f.Total)
		if implied.IsPositive() {
			f.WithheldTaxes = implied
		}
	}

	if f.TaxFolio != "" {
		f.QRURL = satQRBaseURL + f.TaxFolio
	}
}

func countSACCodes(description string) int {
	seen := make(map[string]struct{})
	for _, code := range sacCodePattern.FindAllString(description, -1) {
		seen[code] = struct{}{}
	}
	return len(seen)
}

func withheldFromText(text string) (decimal.Decimal, bool) {
	m := retentionPattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || !value.IsPositive() {
		return decimal.Zero, false
	}
	return value, true
}
