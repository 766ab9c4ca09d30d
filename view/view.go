// Package view validates JSON request bodies against a declared set of typed fields.
package view

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/kcmvp/retail/constraint"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/tidwall/gjson"
)

// ErrInvalid marks every error produced by ViewObject.Validate.
var ErrInvalid = errors.New("invalid request")

// ValidationError collects at most one error per field.
type ValidationError struct {
	errors map[string]error
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.errors) == 0 {
		return ""
	}
	keys := lo.Keys(e.errors)
	sort.Strings(keys)
	msgs := lo.Map(keys, func(k string, _ int) string { return e.errors[k].Error() })
	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Fields returns the names of the fields that failed.
func (e *ValidationError) Fields() []string {
	keys := lo.Keys(e.errors)
	sort.Strings(keys)
	return keys
}

func (e *ValidationError) add(field string, err error) {
	if err == nil {
		return
	}
	if e.errors == nil {
		e.errors = make(map[string]error)
	}
	e.errors[field] = err
}

func (e *ValidationError) err() error {
	if len(e.errors) == 0 {
		return nil
	}
	return e
}

type viewField interface {
	Name() string
	validate(json string) (value any, found bool, err error)
}

type ViewField[T constraint.JSONType] struct {
	name       string
	required   bool
	validators []constraint.Validator[T]
}

var _ viewField = (*ViewField[string])(nil)

func (f *ViewField[T]) Name() string {
	return f.name
}

func (f *ViewField[T]) Optional() *ViewField[T] {
	f.required = false
	return f
}

func (f *ViewField[T]) validate(json string) (any, bool, error) {
	rs, found := f.Validate(json)
	if rs.IsError() {
		return nil, found, rs.Error()
	}
	if !found {
		return nil, false, nil
	}
	return rs.MustGet(), true, nil
}

// Validate extracts the field from json, converts and validates it. The boolean reports whether
// the field was present.
func (f *ViewField[T]) Validate(json string) (mo.Result[T], bool) {
	res := gjson.Get(json, f.name)
	if !res.Exists() || res.Type == gjson.Null {
		if f.required {
			return mo.Err[T](fmt.Errorf("%s %w", f.name, constraint.ErrRequired)), false
		}
		return mo.Ok(*new(T)), false
	}
	typedVal := typed[T](res)
	if typedVal.IsError() {
		return mo.Err[T](fmt.Errorf("field '%s': %w", f.name, typedVal.Error())), true
	}
	val := typedVal.MustGet()
	for _, v := range f.validators {
		if err := v(val); err != nil {
			return mo.Err[T](fmt.Errorf("field '%s': %w", f.name, err)), true
		}
	}
	return mo.Ok(val), true
}

// typed converts a gjson.Result into T, rejecting JSON values of the wrong kind.
func typed[T constraint.JSONType](res gjson.Result) mo.Result[T] {
	var zero T
	switch any(zero).(type) {
	case string:
		if res.Type == gjson.String {
			return mo.Ok(any(res.String()).(T))
		}
	case int:
		if res.Type != gjson.Number {
			break
		}
		bf, _, err := new(big.Float).Parse(res.Raw, 10)
		if err != nil {
			return mo.Err[T](fmt.Errorf("could not parse number: %w", err))
		}
		if !bf.IsInt() {
			return mo.Err[T](fmt.Errorf("%w: cannot assign float value %s to integer type", constraint.ErrTypeMismatch, res.Raw))
		}
		bi, _ := bf.Int(nil)
		if !bi.IsInt64() || int64(int(bi.Int64())) != bi.Int64() {
			return mo.Err[T](fmt.Errorf("for type %T: %w", zero, constraint.ErrIntegerOverflow))
		}
		return mo.Ok(any(int(bi.Int64())).(T))
	}
	return mo.Err[T](fmt.Errorf("%w: expected %T but got JSON type %s", constraint.ErrTypeMismatch, zero, res.Type))
}

type FF[T constraint.JSONType] func(...constraint.ValidateFunc[T]) *ViewField[T]

// Field declares a required field; call the returned function to add more validators.
func Field[T constraint.JSONType](name string, vfs ...constraint.ValidateFunc[T]) FF[T] {
	return func(fs ...constraint.ValidateFunc[T]) *ViewField[T] {
		names := make(map[string]struct{})
		var nf []constraint.Validator[T]
		for _, v := range append(vfs, fs...) {
			n, f := v()
			if _, exists := names[n]; exists {
				panic(fmt.Sprintf("view: duplicate validator '%s' for field '%s'", n, name))
			}
			names[n] = struct{}{}
			nf = append(nf, f)
		}
		return &ViewField[T]{name: name, validators: nf, required: true}
	}
}

// ViewObject is a blueprint for validating a JSON object.
type ViewObject struct {
	fields []viewField
}

// WithFields is the constructor for a ViewObject blueprint.
func WithFields(fields ...viewField) *ViewObject {
	names := make(map[string]struct{})
	for _, f := range fields {
		if _, exists := names[f.Name()]; exists {
			panic(fmt.Sprintf("view: duplicate field name '%s' in ViewObject definition", f.Name()))
		}
		names[f.Name()] = struct{}{}
	}
	return &ViewObject{fields: fields}
}

// Validate checks json against the blueprint and returns the typed values that were present.
func (vo *ViewObject) Validate(json string) mo.Result[ValueObject] {
	errs := &ValidationError{}
	if !gjson.Valid(json) || !gjson.Parse(json).IsObject() {
		errs.add("$", errors.New("body must be a JSON object"))
		return mo.Err[ValueObject](errs)
	}
	known := lo.SliceToMap(vo.fields, func(f viewField) (string, struct{}) { return f.Name(), struct{}{} })
	gjson.Parse(json).ForEach(func(key, _ gjson.Result) bool {
		if _, ok := known[key.String()]; !ok {
			errs.add(key.String(), fmt.Errorf("unknown field '%s'", key.String()))
		}
		return true
	})
	object := valueObject{}
	for _, field := range vo.fields {
		v, found, err := field.validate(json)
		if err != nil {
			errs.add(field.Name(), err)
			continue
		}
		if found {
			object[field.Name()] = v
		}
	}
	if err := errs.err(); err != nil {
		return mo.Err[ValueObject](err)
	}
	return mo.Ok[ValueObject](object)
}

// ValueObject is a sealed, read-only view of validated values.
type ValueObject interface {
	String(name string) mo.Option[string]
	Int(name string) mo.Option[int]
	seal()
}

type valueObject map[string]any

var _ ValueObject = (*valueObject)(nil)

func (vo valueObject) seal() {}

// get panics when the field exists with another type; the blueprint guarantees the type.
func get[T any](d valueObject, name string) mo.Option[T] {
	value, ok := d[name]
	if !ok {
		return mo.None[T]()
	}
	typedValue, ok := value.(T)
	if !ok {
		panic(fmt.Sprintf("view: field '%s' has wrong type: expected %T, got %T", name, *new(T), value))
	}
	return mo.Some(typedValue)
}

func (vo valueObject) String(name string) mo.Option[string] { return get[string](vo, name) }

func (vo valueObject) Int(name string) mo.Option[int] { return get[int](vo, name) }
