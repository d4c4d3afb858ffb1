// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package columns defines the closed set of grid column kinds and the codec
// each kind uses to display and parse cell values.
package columns

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
)

// Kind is a column variant. The set is closed: every Kind has exactly one codec.
type Kind string

const (
	KindText     Kind = "text"
	KindPrice    Kind = "price"
	KindTaxonomy Kind = "taxonomy"
	KindMedia    Kind = "media"
	KindRichText Kind = "richtext"
	KindBoolean  Kind = "boolean"
	KindComputed Kind = "computed"
)

// Kinds lists every column kind.
var Kinds = []Kind{KindText, KindPrice, KindTaxonomy, KindMedia, KindRichText, KindBoolean, KindComputed}

// ErrReadOnly is returned when parsing input for a column that cannot be edited.
var ErrReadOnly = errors.New("column is read-only")

// Codec converts between a field value and its cell text.
type Codec interface {
	Format(v any) string
	Parse(raw string) (any, error)
	Editable() bool
}

var codecs = map[Kind]Codec{
	KindText:     textCodec{},
	KindPrice:    priceCodec{},
	KindTaxonomy: taxonomyCodec{},
	KindMedia:    mediaCodec{},
	KindRichText: richTextCodec{},
	KindBoolean:  booleanCodec{},
	KindComputed: computedCodec{},
}

// CodecFor returns the codec of kind.
func CodecFor(kind Kind) (Codec, error) {
	c, ok := codecs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown column kind %q", kind)
	}

	return c, nil
}

type textCodec struct{}

func (textCodec) Format(v any) string {
	if v == nil {
		return ""
	}

	return fmt.Sprint(v)
}

func (textCodec) Parse(raw string) (any, error) { return strings.TrimSpace(raw), nil }
func (textCodec) Editable() bool                { return true }

// Prices are stored as decimal strings, the way the catalog API returns them.
type priceCodec struct{}

func (priceCodec) Format(v any) string {
	p, set, err := catalog.Price(v)
	if err != nil || !set {
		return ""
	}

	return strconv.FormatFloat(p, 'f', 2, 64)
}

func (priceCodec) Parse(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	p, _, err := catalog.Price(raw)
	if err != nil {
		return nil, err
	}

	return strconv.FormatFloat(p, 'f', -1, 64), nil
}

func (priceCodec) Editable() bool { return true }

// Taxonomy cells hold a list of term ids.
type taxonomyCodec struct{}

func (taxonomyCodec) Format(v any) string {
	items, ok := v.([]any)
	if !ok {
		return ""
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprint(item))
	}

	return strings.Join(parts, ", ")
}

func (taxonomyCodec) Parse(raw string) (any, error) {
	out := []any{}

	for _, part := range splitList(raw) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid term id %q", part)
		}

		out = append(out, id)
	}

	return out, nil
}

func (taxonomyCodec) Editable() bool { return true }

// Media cells hold a list of image URLs.
type mediaCodec struct{}

func (mediaCodec) Format(v any) string {
	items, ok := v.([]any)
	if !ok {
		return ""
	}

	return fmt.Sprintf("%d image(s)", len(items))
}

func (mediaCodec) Parse(raw string) (any, error) {
	out := []any{}

	for _, part := range splitList(raw) {
		if !strings.HasPrefix(part, "http://") && !strings.HasPrefix(part, "https://") {
			return nil, fmt.Errorf("invalid image url %q", part)
		}

		out = append(out, part)
	}

	return out, nil
}

func (mediaCodec) Editable() bool { return true }

type richTextCodec struct{}

// Format shows the first line of the markup with tags removed.
func (richTextCodec) Format(v any) string {
	s, _ := v.(string)

	var b strings.Builder

	inTag := false

	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	line, _, _ := strings.Cut(strings.TrimSpace(b.String()), "\n")

	return line
}

func (richTextCodec) Parse(raw string) (any, error) { return raw, nil }
func (richTextCodec) Editable() bool                { return true }

type booleanCodec struct{}

func (booleanCodec) Format(v any) string {
	if b, ok := v.(bool); ok && b {
		return "yes"
	}

	return "no"
}

func (booleanCodec) Parse(raw string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off", "":
		return false, nil
	}

	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid boolean %q", raw)
	}

	return b, nil
}

func (booleanCodec) Editable() bool { return true }

// Computed columns are derived by the store, e.g. an SEO score.
type computedCodec struct{}

func (computedCodec) Format(v any) string {
	if v == nil {
		return ""
	}

	return fmt.Sprint(v)
}

func (computedCodec) Parse(string) (any, error) { return nil, ErrReadOnly }
func (computedCodec) Editable() bool            { return false }

func splitList(raw string) []string {
	var out []string

	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
