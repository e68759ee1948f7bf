package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ParseStatus says whether a parsed sidecar value was usable.
type ParseStatus string

const (
	// ParseAbsent means the enrichment pipeline produced no value.
	ParseAbsent ParseStatus = "absent"
	// ParseOK means the value decoded into the structured form.
	ParseOK ParseStatus = "parsed"
	// ParseUnparseable means a value exists but does not decode.
	ParseUnparseable ParseStatus = "unparseable"
)

// ParsedAmount is the structured sidecar of a grant's award amount text.
type ParsedAmount struct {
	Status   ParseStatus `json:"status"`
	Amount   *float64    `json:"amount,omitempty"`
	Currency string      `json:"currency,omitempty"`
	RawText  string      `json:"raw_text,omitempty"`
}

// ParsedDeadline is the structured sidecar of a grant's deadline text.
type ParsedDeadline struct {
	Status      ParseStatus `json:"status"`
	Day         *int        `json:"day,omitempty"`
	Month       *int        `json:"month,omitempty"`
	RawText     string      `json:"raw_text,omitempty"`
	IsRecurring bool        `json:"is_recurring,omitempty"`
}

// NewParsedAmount builds a parsed amount value.
func NewParsedAmount(amount float64, currency, rawText string) ParsedAmount {
	return ParsedAmount{Status: ParseOK, Amount: &amount, Currency: currency, RawText: rawText}
}

// NewParsedDeadline builds a parsed deadline value.
func NewParsedDeadline(day, month int, rawText string, recurring bool) ParsedDeadline {
	return ParsedDeadline{Status: ParseOK, Day: &day, Month: &month, RawText: rawText, IsRecurring: recurring}
}

// SortAmount returns the numeric amount used for ordering. ok is false when
// the amount is missing or unusable; such grants sort last.
func (p ParsedAmount) SortAmount() (amount float64, ok bool) {
	if p.Status != ParseOK || p.Amount == nil {
		return 0, false
	}
	return *p.Amount, true
}

// unwrapJSON returns the JSON document held in raw. Some rows store the
// sidecar as a JSON string that itself contains the document; that string
// is unwrapped one level, matching the SQL sort expression.
func unwrapJSON(raw []byte) ([]byte, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return raw, true
		}
		doc := bytes.TrimSpace([]byte(inner))
		if len(doc) == 0 || bytes.Equal(doc, []byte("null")) {
			return nil, false
		}
		return doc, true
	}
	return raw, true
}

// DecodeParsedAmount decodes the award_amount_parsed column.
func DecodeParsedAmount(raw []byte) ParsedAmount {
	doc, ok := unwrapJSON(raw)
	if !ok {
		return ParsedAmount{Status: ParseAbsent}
	}

	var wire struct {
		Amount   json.RawMessage `json:"amount"`
		Currency string          `json:"currency"`
		RawText  string          `json:"raw_text"`
	}
	if err := json.Unmarshal(doc, &wire); err != nil {
		return ParsedAmount{Status: ParseUnparseable, RawText: string(doc)}
	}

	out := ParsedAmount{Status: ParseOK, Currency: wire.Currency, RawText: wire.RawText}
	amount := bytes.TrimSpace(wire.Amount)
	if len(amount) == 0 || bytes.Equal(amount, []byte("null")) {
		return out
	}
	var v float64
	if err := json.Unmarshal(amount, &v); err != nil {
		out.Status = ParseUnparseable
		return out
	}
	out.Amount = &v
	return out
}

// DecodeParsedDeadline decodes the application_deadline_parsed column.
func DecodeParsedDeadline(raw []byte) ParsedDeadline {
	doc, ok := unwrapJSON(raw)
	if !ok {
		return ParsedDeadline{Status: ParseAbsent}
	}

	var wire struct {
		Day         *int   `json:"day"`
		Month       *int   `json:"month"`
		RawText     string `json:"raw_text"`
		IsRecurring bool   `json:"is_recurring"`
	}
	if err := json.Unmarshal(doc, &wire); err != nil {
		return ParsedDeadline{Status: ParseUnparseable, RawText: string(doc)}
	}
	if wire.Month != nil && (*wire.Month < 1 || *wire.Month > 12) {
		return ParsedDeadline{Status: ParseUnparseable, RawText: wire.RawText}
	}

	return ParsedDeadline{
		Status:      ParseOK,
		Day:         wire.Day,
		Month:       wire.Month,
		RawText:     wire.RawText,
		IsRecurring: wire.IsRecurring,
	}
}

// Placeholder shown when a sidecar has nothing to display.
const Placeholder = "-"

var amountPrinter = message.NewPrinter(language.Norwegian)

// FormatAmount renders an amount for display, e.g. "kr 5 000".
func FormatAmount(p ParsedAmount) string {
	switch p.Status {
	case ParseUnparseable:
		return string(ParseUnparseable)
	case ParseOK:
		if p.Amount == nil || *p.Amount == 0 {
			return Placeholder
		}
		return "kr " + amountPrinter.Sprintf("%v", number.Decimal(*p.Amount, number.MaxFractionDigits(2)))
	default:
		return Placeholder
	}
}

var monthAbbrev = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// FormatDeadline renders a deadline for display, e.g. "1. Mar".
func FormatDeadline(p ParsedDeadline) string {
	switch p.Status {
	case ParseUnparseable:
		return string(ParseUnparseable)
	case ParseOK:
		if p.Day == nil || p.Month == nil || *p.Day == 0 || *p.Month < 1 || *p.Month > 12 {
			return Placeholder
		}
		return fmt.Sprintf("%d. %s", *p.Day, monthAbbrev[*p.Month-1])
	default:
		return Placeholder
	}
}
