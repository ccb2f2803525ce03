// Package details expands the JSON payloads embedded in log and command
// entries into key/value rows for display.
package details

import (
	"strings"
	"unicode"

	"github.com/valyala/fastjson"
)

// Row is one top-level key of a payload.
type Row struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Payload is the optional structured form of a JSON text field.
// Present is false when the field was empty or could not be decoded.
type Payload struct {
	Rows    []Row `json:"rows,omitempty"`
	Present bool  `json:"present"`
}

var parsers fastjson.ParserPool

// Parse decodes raw as a JSON object. Anything that is not a JSON object
// yields an absent payload; Parse never fails.
func Parse(raw string) Payload {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Payload{}
	}

	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.Parse(raw)
	if err != nil {
		return Payload{}
	}
	obj, err := v.Object()
	if err != nil {
		return Payload{}
	}

	rows := make([]Row, 0, obj.Len())
	obj.Visit(func(key []byte, val *fastjson.Value) {
		k := string(key)
		rows = append(rows, Row{
			Key:   k,
			Label: Humanize(k),
			Value: stringify(val),
		})
	})

	return Payload{Rows: rows, Present: true}
}

// stringify renders strings without quotes and everything else as compact JSON.
func stringify(v *fastjson.Value) string {
	if v.Type() == fastjson.TypeString {
		return string(v.GetStringBytes())
	}
	return v.String()
}

// Humanize turns "disk_usage_pct" into "Disk Usage Pct".
func Humanize(key string) string {
	key = strings.ReplaceAll(key, "_", " ")

	var b strings.Builder
	b.Grow(len(key))
	inWord := false
	for _, r := range key {
		isWord := unicode.IsLetter(r) || unicode.IsDigit(r)
		if isWord && !inWord {
			r = unicode.ToUpper(r)
		}
		inWord = isWord
		b.WriteRune(r)
	}
	return b.String()
}
