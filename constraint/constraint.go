package constraint

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"github.com/tidwall/match"
)

// JSONType is a constraint for the Go types a request field can be decoded into.
type JSONType interface {
	int | string
}

type Validator[T JSONType] func(v T) error
type ValidateFunc[T JSONType] func() (string, Validator[T])

type charSet int

const (
	LowerCaseChar charSet = iota
	UpperCaseChar
	NumberChar
)

var (
	ErrIntegerOverflow = errors.New("integer overflow")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrRequired        = errors.New("is required but not found")

	ErrLengthBetween = errors.New("length must be between")
	ErrCharSetOnly   = errors.New("can only contain characters from")
	ErrNotMatch      = errors.New("not match pattern")
	ErrNotValidEmail = errors.New("not valid email address")
	ErrNotValidURL   = errors.New("not valid url")
	ErrNotOneOf      = errors.New("value must be one of")
	ErrMustGt        = errors.New("must be greater than")
	ErrMustGte       = errors.New("must be greater than or equal to")
	ErrNotDecimal    = errors.New("not a valid decimal")
	ErrNotBase64     = errors.New("not valid base64")
)

func (set charSet) value() (chars string, name string) {
	switch set {
	case LowerCaseChar:
		return string(lo.LowerCaseLettersCharset), "lower case letters"
	case UpperCaseChar:
		return string(lo.UpperCaseLettersCharset), "upper case letters"
	case NumberChar:
		return string(lo.NumbersCharset), "numbers"
	default:
		panic("unhandled default case in charSet.value()")
	}
}

// --- String Validators ---

// LengthBetween validates that a string's length is within a given range (inclusive).
func LengthBetween(min, max int) ValidateFunc[string] {
	return func() (string, Validator[string]) {
		return "length_between", func(str string) error {
			n := len(str)
			return lo.Ternary(n < min || n > max, fmt.Errorf("%w %d and %d characters", ErrLengthBetween, min, max), nil)
		}
	}
}

// CharSetOnly validates that a string only contains characters from the given sets plus extra.
func CharSetOnly(extra string, charSets ...charSet) ValidateFunc[string] {
	var allowed strings.Builder
	allowed.WriteString(extra)
	names := lo.Map(charSets, func(set charSet, _ int) string {
		chars, name := set.value()
		allowed.WriteString(chars)
		return name
	})
	if extra != "" {
		names = append(names, fmt.Sprintf("%q", extra))
	}
	return func() (string, Validator[string]) {
		return "only_contains", func(str string) error {
			for _, r := range str {
				if !strings.ContainsRune(allowed.String(), r) {
					return fmt.Errorf("%w: %s", ErrCharSetOnly, strings.Join(names, ", "))
				}
			}
			return nil
		}
	}
}

// Match validates that a string matches a wildcard pattern.
//   - `*`: matches any sequence of characters.
//   - `?`: matches any single character.
func Match(pattern string) ValidateFunc[string] {
	lo.Assertf(match.IsPattern(pattern), "invalid pattern `%s`: `?` stands for one character, `*` stands for any number of characters", pattern)
	return func() (string, Validator[string]) {
		return "match", func(str string) error {
			return lo.Ternary(!match.Match(str, pattern), fmt.Errorf("%w %s", ErrNotMatch, pattern), nil)
		}
	}
}

// Email validates that a string is a valid email address.
func Email() ValidateFunc[string] {
	return func() (string, Validator[string]) {
		return "email", func(str string) error {
			return lo.Ternary(mo.TupleToResult[*mail.Address](mail.ParseAddress(str)).IsError(), fmt.Errorf("%w: %s", ErrNotValidEmail, str), nil)
		}
	}
}

// URL validates that a string is an absolute URL.
func URL() ValidateFunc[string] {
	return func() (string, Validator[string]) {
		return "url", func(str string) error {
			rs := mo.TupleToResult[*url.URL](url.Parse(str))
			bad := rs.IsError() || rs.MustGet().Scheme == "" || rs.MustGet().Host == ""
			return lo.Ternary(bad, fmt.Errorf("%w: %s", ErrNotValidURL, str), nil)
		}
	}
}

// Decimal validates fixed-point decimal text such as "10.25": not negative and at most
// scale fractional digits.
func Decimal(scale int32) ValidateFunc[string] {
	return func() (string, Validator[string]) {
		return "decimal", func(str string) error {
			d, err := decimal.NewFromString(str)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrNotDecimal, str)
			}
			if d.IsNegative() || !d.Equal(d.Truncate(scale)) {
				return fmt.Errorf("%w: %s must be >= 0 with at most %d decimals", ErrNotDecimal, str, scale)
			}
			return nil
		}
	}
}

// Base64 validates standard base64 encoded content.
func Base64() ValidateFunc[string] {
	return func() (string, Validator[string]) {
		return "base64", func(str string) error {
			_, err := base64.StdEncoding.DecodeString(str)
			return lo.Ternary(err != nil, ErrNotBase64, nil)
		}
	}
}

// --- Generic and Comparison Validators ---

// OneOf validates that a value is one of the allowed values.
func OneOf[T JSONType](allowed ...T) ValidateFunc[T] {
	return func() (string, Validator[T]) {
		return "one_of", func(val T) error {
			return lo.Ternary(!lo.Contains(allowed, val), fmt.Errorf("%w: %v", ErrNotOneOf, allowed), nil)
		}
	}
}

// Gt validates that a value is greater than min.
func Gt(min int) ValidateFunc[int] {
	return func() (string, Validator[int]) {
		return "gt", func(val int) error {
			return lo.Ternary(val <= min, fmt.Errorf("%w %d", ErrMustGt, min), nil)
		}
	}
}

// Gte validates that a value is greater than or equal to min.
func Gte(min int) ValidateFunc[int] {
	return func() (string, Validator[int]) {
		return "gte", func(val int) error {
			return lo.Ternary(val < min, fmt.Errorf("%w %d", ErrMustGte, min), nil)
		}
	}
}
