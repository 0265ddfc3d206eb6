package validation

import (
	"fmt"
	"sort"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/marketplace-ordersync/internal/status"
)

// New returns a configured validator with the custom tags used across the
// service registered.
//
//	marketplace_status: the value is an Orders API OrderStatus known to the
//	default status table.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	known := status.DefaultTable()
	_ = v.RegisterValidation("marketplace_status", func(fl validatorv10.FieldLevel) bool {
		_, ok := known[fl.Field().String()]
		return ok
	})

	return v
}

// FieldErrors flattens validator errors into namespace -> message.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	if ve, ok := err.(validatorv10.ValidationErrors); ok {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fe.Error()
		}
	} else if err != nil {
		out["error"] = err.Error()
	}
	return out
}

// Describe renders FieldErrors as a single deterministic line.
func Describe(err error) string {
	fields := FieldErrors(err)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, fields[k]))
	}
	return strings.Join(parts, "; ")
}
