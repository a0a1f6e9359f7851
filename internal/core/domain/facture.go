package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type InvoiceType string

const (
	InvoiceWeekend InvoiceType = "facture_weekend"
	InvoiceTrip    InvoiceType = "facture_trip"
)

func ParseInvoiceType(raw string) (InvoiceType, bool) {
	switch InvoiceType(strings.TrimSpace(raw)) {
	case InvoiceWeekend:
		return InvoiceWeekend, true
	case InvoiceTrip:
		return InvoiceTrip, true
	default:
		return "", false
	}
}

// FactureTrip is a weighing ticket for a single delivery. It is filed under the
// weekend invoice that bills it, or staged until that invoice exists.
type FactureTrip struct {
	BusinessName        string    `json:"name_business"`
	BusinessRegion      string    `json:"business_region"`
	BusinessLocation    string    `json:"business_ubication"`
	Key                 string    `json:"key"`
	Code                string    `json:"code_facture"`
	MaterialType        string    `json:"type_material"`
	MovementType        string    `json:"type_movement"`
	EnteredAt           Timestamp `json:"date_entry"`
	Bales               int       `json:"cuantity_bales"`
	Container           int       `json:"container"`
	DocumentType        string    `json:"type_document"`
	ExitedAt            Timestamp `json:"date_exit"`
	Supplier            string    `json:"proveedor"`
	TransportName       string    `json:"name_transport"`
	OperatorName        string    `json:"name_operator"`
	Plates              string    `json:"plates"`
	TripLocation        string    `json:"ubication_trip"`
	GrossWeight         float64   `json:"gross_weight"`
	TareWeight          float64   `json:"tare_weight"`
	NetWeight           float64   `json:"net_weight"`
	NotSuitable         float64   `json:"not_suitable"`
	ForbiddenWeight     float64   `json:"forbiden_weight"`
	Humidity            float64   `json:"humidity"`
	NotSuitableDiscount float64   `json:"kg_desc_not_suitable"`
	ForbiddenDiscount   float64   `json:"kg_desc_forbiden"`
	HumidityDiscount    float64   `json:"kg_desc_humidity"`
	AcceptedWeight      float64   `json:"kg_desc_accepted_weight"`
	ReceivedAt          Timestamp `json:"recibes_trip"`
}

// Business is the archive directory the trip belongs to.
func (f FactureTrip) Business() string {
	return NormalizeBusinessName(f.BusinessName)
}

// TripKey derives the composite key from the ticket data.
func (f FactureTrip) TripKey() TripKey {
	return NewTripKey(f.ReceivedAt.Time, f.Code)
}

type ConceptDuty struct {
	Duty              string          `json:"duty"`
	DutyType          string          `json:"type_duty"`
	BaseAmount        decimal.Decimal `json:"base_import"`
	FactorType        string          `json:"type_factor"`
	RateFee           string          `json:"rate_fee"`
	AmountWithFeeRate decimal.Decimal `json:"import_with_fee_rate"`
}

type TripConcept struct {
	ProductCode string          `json:"product_code"`
	Trips       int             `json:"cuantity_trips"`
	UnitKey     string          `json:"key_unit"`
	UnitType    string          `json:"type_unit"`
	UnitValue   decimal.Decimal `json:"value_unit"`
	TotalAmount decimal.Decimal `json:"import_total"`
	Discount    *string         `json:"discount"`
	Taxable     bool            `json:"object_duty"`
	Description string          `json:"description"`
	Duties      []ConceptDuty   `json:"dutys_of_concept"`
}

// FactureWeekend is the periodic CFDI invoice that bills a set of trips.
type FactureWeekend struct {
	IssuerRFC          string          `json:"rfc_emisor"`
	IssuerName         string          `json:"name_emisor"`
	ReceiverRFC        string          `json:"rfc_receptor"`
	ReceiverName       string          `json:"name_receptor"`
	ReceiverPostalCode string          `json:"postal_code_receptor"`
	TaxFolio           string          `json:"tax_folio"`
	CSDNumber          string          `json:"no_csd"`
	IssuerPostalCode   string          `json:"postal_code_emisor"`
	IssuedAt           Timestamp       `json:"datetime_emisor"`
	Concepts           []TripConcept   `json:"concepts"`
	Currency           string          `json:"type_money"`
	PaymentType        string          `json:"type_pay"`
	PaymentMethod      string          `json:"method_pay"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	TransferredTaxes   decimal.Decimal `json:"transferred_taxes"`
	WithheldTaxes      decimal.Decimal `json:"stoped_taxes"`
	Total              decimal.Decimal `json:"total"`
	QRURL              string          `json:"url_qr"`
	Description        string          `json:"description,omitempty"`
}

func (f FactureWeekend) Business() string {
	return NormalizeBusinessName(f.ReceiverName)
}

// FolderName is the period folder the invoice is stored in.
func (f FactureWeekend) FolderName() string {
	return FormatParentFolderName(f.IssuedAt.Time)
}

// Validate reports the fields an invoice cannot be filed without.
func (f FactureTrip) Validate() error {
	switch {
	case strings.TrimSpace(f.BusinessName) == "":
		return WrapError(ErrInvalidInput, "validate trip", errMissing("name_business"))
	case strings.TrimSpace(f.Code) == "":
		return WrapError(ErrInvalidInput, "validate trip", errMissing("code_facture"))
	case f.ReceivedAt.IsZero():
		return WrapError(ErrInvalidInput, "validate trip", errMissing("recibes_trip"))
	}
	return nil
}

func (f FactureWeekend) Validate() error {
	switch {
	case strings.TrimSpace(f.IssuerRFC) == "":
		return WrapError(ErrInvalidInput, "validate weekend", errMissing("rfc_emisor"))
	case strings.TrimSpace(f.TaxFolio) == "":
		return WrapError(ErrInvalidInput, "validate weekend", errMissing("tax_folio"))
	case strings.TrimSpace(f.ReceiverName) == "":
		return WrapError(ErrInvalidInput, "validate weekend", errMissing("name_receptor"))
	case f.IssuedAt.IsZero():
		return WrapError(ErrInvalidInput, "validate weekend", errMissing("datetime_emisor"))
	}
	return nil
}

type missingFieldError string

func (e missingFieldError) Error() string { return "missing required field " + string(e) }

func errMissing(field string) error { return missingFieldError(field) }
