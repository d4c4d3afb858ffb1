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

package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/standarderrors"
)

// Price reads a price field. Prices arrive as numbers or as decimal strings;
// nil and "" mean the price is not set.
func Price(v any) (value float64, set bool, err error) {
	switch p := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return p, true, nil
	case float32:
		return float64(p), true, nil
	case int:
		return float64(p), true, nil
	case int64:
		return float64(p), true, nil
	case string:
		s := strings.TrimSpace(p)
		if s == "" {
			return 0, false, nil
		}

		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("not a number: %q", p)
		}

		return f, true, nil
	default:
		return 0, false, fmt.Errorf("unsupported price type %T", v)
	}
}

// Validate applies the local commit rules to row:
//   - top-level products need a non-empty name
//   - regular and sale price must be numeric and >= 0
//   - the sale price may not exceed the regular price
//
// It returns a *standarderrors.ValidationError listing every problem, or nil.
func Validate(row *Row) error {
	problems := Problems(row)
	if len(problems) == 0 {
		return nil
	}

	return &standarderrors.ValidationError{Problems: problems}
}

// ValidateAll validates rows and merges all problems into one error.
func ValidateAll(rows []*Row) error {
	var problems []standarderrors.FieldProblem
	for _, row := range rows {
		problems = append(problems, Problems(row)...)
	}

	if len(problems) == 0 {
		return nil
	}

	return &standarderrors.ValidationError{Problems: problems}
}

// Problems returns the validation problems of row without wrapping them in an error.
func Problems(row *Row) []standarderrors.FieldProblem {
	var problems []standarderrors.FieldProblem

	add := func(field, msg string) {
		problems = append(problems, standarderrors.FieldProblem{RowID: int64(row.ID), Field: field, Message: msg})
	}

	if !row.IsVariation() {
		name, _ := row.Fields[FieldName].(string)
		if strings.TrimSpace(name) == "" {
			add(FieldName, "must not be empty")
		}
	}

	regular, regularSet, err := Price(row.Fields[FieldRegularPrice])
	if err != nil {
		add(FieldRegularPrice, err.Error())
	} else if regularSet && regular < 0 {
		add(FieldRegularPrice, "must be >= 0")
	}

	sale, saleSet, err := Price(row.Fields[FieldSalePrice])
	if err != nil {
		add(FieldSalePrice, err.Error())
	} else if saleSet && sale < 0 {
		add(FieldSalePrice, "must be >= 0")
	}

	if regularSet && saleSet && sale > regular {
		add(FieldSalePrice, "must not exceed regular price")
	}

	return problems
}
