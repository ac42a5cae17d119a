package interpolation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

const tagName = "env_interpolation"

// InterpolateStruct expands environment references in the exported fields of
// the struct pointed to by v that carry the tag `env_interpolation:"yes"`.
// Supported field kinds are string, []string, map[string]string, nested
// structs and pointers to structs. The struct is modified in place.
func InterpolateStruct(v any) error {
	if v == nil {
		return nil
	}

	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Pointer {
		return fmt.Errorf("expected pointer to struct, got %T", v)
	}
	if val.IsNil() {
		return nil
	}
	val = val.Elem()
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("expected pointer to struct, got %T", v)
	}

	typ := val.Type()
	var errs []error
	for i := range val.NumField() {
		field := val.Field(i)
		meta := typ.Field(i)
		if !field.CanSet() || !strings.EqualFold(meta.Tag.Get(tagName), "yes") {
			continue
		}
		if err := expandValue(field); err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", meta.Name, err))
		}
	}
	return errors.Join(errs...)
}

func expandValue(field reflect.Value) error {
	switch field.Kind() {
	case reflect.String:
		expanded, err := ExpandEnvVars(field.String())
		if err != nil {
			return err
		}
		field.SetString(expanded)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		var errs []error
		for j := range field.Len() {
			elem := field.Index(j)
			expanded, err := ExpandEnvVars(elem.String())
			if err != nil {
				errs = append(errs, fmt.Errorf("[%d]: %w", j, err))
				continue
			}
			elem.SetString(expanded)
		}
		return errors.Join(errs...)

	case reflect.Map:
		t := field.Type()
		if field.IsNil() || t.Key().Kind() != reflect.String || t.Elem().Kind() != reflect.String {
			return nil
		}
		var errs []error
		for _, key := range field.MapKeys() {
			expanded, err := ExpandEnvVars(field.MapIndex(key).String())
			if err != nil {
				errs = append(errs, fmt.Errorf("[%s]: %w", key.String(), err))
				continue
			}
			field.SetMapIndex(key, reflect.ValueOf(expanded).Convert(t.Elem()))
		}
		return errors.Join(errs...)

	case reflect.Struct:
		return InterpolateStruct(field.Addr().Interface())

	case reflect.Pointer:
		if field.IsNil() || field.Type().Elem().Kind() != reflect.Struct {
			return nil
		}
		return InterpolateStruct(field.Interface())
	}
	return nil
}
