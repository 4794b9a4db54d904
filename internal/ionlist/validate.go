// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ionlist

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pdiddy/xic-engine/pkg/types"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	v.RegisterStructValidation(validateCompound, types.CompoundGroup{})
	v.RegisterStructValidation(validateIonList, types.IonList{})
	return v
}

// validateIonList rejects repeated compound names. The document decoder
// keeps duplicate mapping keys, and the compound name is the grouping key
// of every measurement.
func validateIonList(sl validator.StructLevel) {
	list := sl.Current().Interface().(types.IonList)
	seen := make(map[string]bool, len(list.Compounds))
	for _, c := range list.Compounds {
		if seen[c.Name] {
			sl.ReportError(list.Compounds, "compounds", "Compounds", "unique_compound", c.Name)
			return
		}
		seen[c.Name] = true
	}
}

// validateCompound checks the cross-field rules of a compound group.
func validateCompound(sl validator.StructLevel) {
	group := sl.Current().Interface().(types.CompoundGroup)
	if len(group.Info) > len(group.Ions) {
		sl.ReportError(group.Info, "info", "Info", "info_len", "")
	}
	seen := make(map[string]bool, len(group.Ions))
	for _, ion := range group.Ions {
		if seen[ion.Name] {
			sl.ReportError(group.Ions, "ions", "Ions", "unique_mass", ion.Name)
			return
		}
		seen[ion.Name] = true
	}
}

// validateList checks a decoded list and folds validator output into one
// readable error.
func validateList(v *validator.Validate, list *types.IonList) error {
	err := v.Struct(list)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(list, fe))
	}
	return fmt.Errorf("invalid ion list: %s", strings.Join(msgs, "; "))
}

func formatFieldError(list *types.IonList, fe validator.FieldError) string {
	field := describeField(list, fe.Namespace())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "finite":
		return fmt.Sprintf("%s must be a finite number", field)
	case "info_len":
		return fmt.Sprintf("%s has more entries than ions", field)
	case "unique_compound":
		return fmt.Sprintf("%s lists compound %q more than once", field, fe.Param())
	case "unique_mass":
		return fmt.Sprintf("%s lists mass %s more than once", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

// describeField rewrites a validator namespace such as
// "IonList.compounds[2].ions[0].expected_mass" so it names the compound.
func describeField(list *types.IonList, ns string) string {
	_, rest, ok := strings.Cut(ns, ".")
	if !ok {
		return ns
	}
	var idx int
	if n, err := fmt.Sscanf(rest, "compounds[%d]", &idx); err == nil && n == 1 && idx < len(list.Compounds) {
		if name := list.Compounds[idx].Name; name != "" {
			if _, tail, ok := strings.Cut(rest, "]."); ok {
				return fmt.Sprintf("compound %q %s", name, tail)
			}
			return fmt.Sprintf("compound %q", name)
		}
	}
	return rest
}
