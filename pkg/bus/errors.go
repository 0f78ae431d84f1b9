package bus

import "github.com/evoagent/core/pkg/errs"

func errMissingField(name string) error {
	return errs.NewValidation("message missing required field %q", name)
}
