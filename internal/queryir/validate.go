package queryir

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/roach88/tokenflow/internal/ir"
)

// Validate checks that q only uses known fields with literals of the
// field's type. All problems are reported, combined with multierr.
func Validate(q Select) error {
	var errs error
	if q.Limit < 0 {
		errs = multierr.Append(errs, fmt.Errorf("limit must not be negative, got %d", q.Limit))
	}
	if q.Filter != nil {
		errs = multierr.Append(errs, validatePredicate(q.Filter, "filter"))
	}
	return errs
}

func validatePredicate(p Predicate, path string) error {
	switch pred := p.(type) {
	case Equals:
		if err := validateField(pred.Field, path); err != nil {
			return err
		}
		return validateLiteral(pred.Field, pred.Value, path)
	case AtLeast:
		return validateIntField(pred.Field, path)
	case AtMost:
		return validateIntField(pred.Field, path)
	case And:
		return validateAll(pred.Predicates, path+".and")
	case Or:
		return validateAll(pred.Predicates, path+".or")
	case nil:
		return fmt.Errorf("%s: nil predicate", path)
	default:
		return fmt.Errorf("%s: unsupported predicate %T", path, p)
	}
}

func validateAll(preds []Predicate, path string) error {
	var errs error
	for i, p := range preds {
		errs = multierr.Append(errs, validatePredicate(p, fmt.Sprintf("%s[%d]", path, i)))
	}
	return errs
}

func validateField(f Field, path string) error {
	if !f.Valid() {
		return fmt.Errorf("%s: unknown field %q", path, f)
	}
	return nil
}

func validateIntField(f Field, path string) error {
	if err := validateField(f, path); err != nil {
		return err
	}
	if !f.IsInt() {
		return fmt.Errorf("%s: range on non-integer field %q", path, f)
	}
	return nil
}

func validateLiteral(f Field, v ir.IRValue, path string) error {
	switch v.(type) {
	case ir.IRInt:
		if f.IsInt() {
			return nil
		}
	case ir.IRString:
		if !f.IsInt() {
			return nil
		}
	}
	want := "a string"
	if f.IsInt() {
		want = "an integer"
	}
	return fmt.Errorf("%s: field %q needs %s literal, got %T", path, f, want, v)
}
