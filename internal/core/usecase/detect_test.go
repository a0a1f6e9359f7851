package usecase

import (
	"testing"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

func TestDetectInvoiceType(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.InvoiceType
	}{
		{
			name: "weighing ticket",
			text: "BOLETA DE BASCULA Clave 123 Peso Bruto 15000 Tara 5000 Peso Neto 10000 Pacas 20 Placas ABC-123 Humedad 2%",
			want: domain.InvoiceTrip,
		},
		{
			name: "cfdi invoice",
			text: "Comprobante Fiscal Digital CFDI RFC Emisor AAA010101AAA Folio Fiscal 1234 Nombre Receptor ACME Conceptos Moneda MXN Método de pago PUE",
			want: domain.InvoiceWeekend,
		},
		{
			name: "unrecognisable text defaults to weekend",
			text: "lorem ipsum dolor",
			want: domain.InvoiceWeekend,
		},
		{
			name: "empty text defaults to weekend",
			text: "",
			want: domain.InvoiceWeekend,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, scores := DetectInvoiceType(tc.text)
			if got != tc.want {
				t.Fatalf("DetectInvoiceType() = %s (scores %+v), want %s", got, scores, tc.want)
			}
		})
	}
}

func TestDetectInvoiceTypeScoresEachFeatureOnce(t *testing.T) {
	_, scores := DetectInvoiceType("peso bruto bruto bruto")
	if scores.Trip != 1 {
		t.Fatalf("expected a single trip feature, got %+v", scores)
	}
}
