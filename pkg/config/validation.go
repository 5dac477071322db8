package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	sserr "github.com/tallerpinturas/tallerpinturas-core/pkg/errors"
)

// Validator is implemented by configuration structs that need checks
// beyond `required:"true"`. [Loader.Load] calls Validate after the tag
// checks pass. A returned *sserr.Error is passed through unchanged; any
// other error is wrapped with [sserr.CodeValidation].
//
//	func (c *BFFConfig) Validate() error {
//	    if !strings.HasPrefix(c.JWKSURL, "https://") {
//	        return sserr.New(sserr.CodeValidation, "config: JWKS URL must use https")
//	    }
//	    return nil
//	}
type Validator interface {
	Validate() error
}

func validate(cfg any, rv reflect.Value) error {
	if missing := missingRequired(rv, "", nil); len(missing) > 0 {
		quoted := make([]string, len(missing))
		for i, m := range missing {
			quoted[i] = strconv.Quote(m)
		}
		msg := fmt.Sprintf("config: required field %s is empty", quoted[0])
		if len(missing) > 1 {
			msg = fmt.Sprintf("config: required fields %s are empty", strings.Join(quoted, ", "))
		}
		return sserr.New(sserr.CodeValidationRequired, msg).WithDetail("fields", missing)
	}

	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}
	err := v.Validate()
	if err == nil {
		return nil
	}
	if _, ok := sserr.AsError(err); ok {
		return err
	}
	return sserr.Wrap(err, sserr.CodeValidation, "config: custom validation failed")
}

// missingRequired appends the dotted path (e.g. "Auth.Issuer") of every
// `required:"true"` field in rv that is still empty, in field order.
func missingRequired(rv reflect.Value, path string, missing []string) []string {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}

		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}

		if field.Kind() == reflect.Struct {
			missing = missingRequired(field, fieldPath, missing)
			continue
		}
		if sf.Tag.Get("required") == "true" && isEmpty(field) {
			missing = append(missing, fieldPath)
		}
	}
	return missing
}

// isEmpty treats blank strings and zero-length slices and maps as unset.
// AUDIENCES=" , " parses to a non-nil empty slice and must still count.
func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}
