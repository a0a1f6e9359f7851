package ollama

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
	"github.com/shopspring/decimal"
)

// looseObject is a decoded model answer. Models mix strings and numbers
// freely, so every field is read through a tolerant accessor.
type looseObject map[string]any

func decodeLooseObject(raw string) (looseObject, error) {
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()
	var out looseObject
	if err := decoder.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (o looseObject) str(key string) string {
	switch v := o[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func (o looseObject) float(key string) float64 {
	value, ok := parseLooseNumber(o[key])
	if !ok {
		return 0
	}
	f, _ := value.Float64()
	return f
}

func (o looseObject) int(key string) int {
	value, ok := parseLooseNumber(o[key])
	if !ok {
		return 0
	}
	f, _ := value.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

func (o looseObject) decimal(key string) decimal.Decimal {
	value, _ := parseLooseNumber(o[key])
	return value
}

func (o looseObject) boolean(key string) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	case json.Number:
		return v.String() != "0"
	}
	return false
}

func (o looseObject) objects(key string) []looseObject {
	items, ok := o[key].([]any)
	if !ok {
		return nil
	}
	out := make([]looseObject, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, looseObject(obj))
		}
	}
	return out
}

func (o looseObject) time(key string) (time.Time, bool) {
	raw := o.str(key)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := domain.ParseFlexibleTime(raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var numberNoise = strings.NewReplacer(",", "", "$", "", " ", "")

func parseLooseNumber(raw any) (decimal.Decimal, bool) {
	var text string
	switch v := raw.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = numberNoise.Replace(strings.TrimSpace(v))
	case float64:
		return decimal.NewFromFloat(v), true
	default:
		return decimal.Zero, false
	}
	if text == "" {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

type textDatePattern struct {
	pattern *regexp.Regexp
	layout  string
}

var textDatePatterns = []textDatePattern{
	{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\s+\d{1,2}:\d{2}:\d{2}\s?[AaPp][Mm]\b`), "2/1/2006 3:04:05PM"},
	{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`), "2/1/2006"},
	{regexp.MustCompile(`\b\d{1,2}\s+[A-Za-z]{3}\s+\d{4}\b`), "2 Jan 2006"},
	{regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`), "2006-01-02"},
}

// datesInText collects every date the OCR text spells out, in pattern order.
func datesInText(text string) []time.Time {
	var out []time.Time
	for _, p := range textDatePatterns {
		for _, match := range p.pattern.FindAllString(text, -1) {
			normalized := strings.ToUpper(strings.Join(strings.Fields(match), " "))
			normalized = strings.Replace(normalized, " AM", "AM", 1)
			normalized = strings.Replace(normalized, " PM", "PM", 1)
			if t, err := time.Parse(p.layout, normalized); err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}

func latest(times []time.Time) time.Time {
	var out time.Time
	for _, t := range times {
		if t.After(out) {
			out = t
		}
	}
	return out
}
