package ollama

const maxPromptText = 12000

const tripSystemPrompt = `You extract structured data from OCR text of truck weighing tickets.
Return one strict JSON object and nothing else. Use "" for missing text and 0 for missing numbers.
Keys:
name_business, business_region, business_ubication, key, code_facture, type_material,
type_movement, date_entry, cuantity_bales (integer), container (integer), type_document,
date_exit, proveedor, name_transport, name_operator, plates, ubication_trip,
gross_weight, tare_weight, net_weight, not_suitable, forbiden_weight, humidity,
kg_desc_not_suitable, kg_desc_forbiden, kg_desc_humidity, kg_desc_accepted_weight,
recibes_trip.
Dates use the format "YYYY-MM-DD HH:MM:SS". recibes_trip is the moment the load was received.
Weights are plain numbers in kilograms without thousands separators.`

const weekendSystemPrompt = `You extract structured data from OCR text of Mexican CFDI invoices.
Return one strict JSON object and nothing else. Use "" for missing text and 0 for missing numbers.
Keys:
rfc_emisor, name_emisor, rfc_receptor, name_receptor, postal_code_receptor, tax_folio,
no_csd, postal_code_emisor, datetime_emisor, type_money, type_pay, method_pay,
subtotal, transferred_taxes, stoped_taxes, total, url_qr, description,
concepts (array of objects with product_code, cuantity_trips, key_unit, type_unit,
value_unit, import_total, discount, object_duty, description,
dutys_of_concept (array of objects with duty, type_duty, base_import, type_factor,
rate_fee, import_with_fee_rate))).
tax_folio is the fiscal UUID. datetime_emisor uses the format "YYYY-MM-DD HH:MM:SS".
Amounts are plain numbers without currency symbols or thousands separators.`

func buildExtractionPrompt(text string) string {
	snippet := text
	if len(snippet) > maxPromptText {
		snippet = snippet[:maxPromptText]
	}
	return "Document text:\n" + snippet
}
