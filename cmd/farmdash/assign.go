package main

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"}

var timeType = reflect.TypeOf(time.Time{})

//assign sets the fields of the struct pointed to by record from key=value pairs. Keys are
//the JSON names of the fields. An empty value clears optional fields.
func assign(record interface{}, pairs []string) error {
	target := reflect.ValueOf(record)
	if target.Kind() != reflect.Ptr || target.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("cannot assign to %T", record)
	}
	target = target.Elem()

	fields := jsonFields(target.Type())

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return fmt.Errorf("expected key=value, got %q", pair)
		}

		key = strings.TrimSpace(key)
		index, ok := fields[strings.ToLower(key)]
		if !ok {
			return fmt.Errorf("unknown field %q", key)
		}

		if err := setValue(target.Field(index), value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	return nil
}

//jsonFields maps lower cased JSON names to field indices. Fields that are not sent to the
//server, and the identifier, cannot be assigned.
func jsonFields(t reflect.Type) map[string]int {
	fields := map[string]int{}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" || name == "id" || !f.IsExported() {
			continue
		}
		fields[strings.ToLower(name)] = i
	}

	return fields
}

func setValue(field reflect.Value, value string) error {
	if field.Kind() == reflect.Ptr {
		if strings.TrimSpace(value) == "" {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}

		elem := reflect.New(field.Type().Elem())
		if err := setValue(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	if field.Type() == timeType {
		t, err := parseTime(value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(t))
		return nil
	}

	value = strings.TrimSpace(value)

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%q is not true or false", value)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%q is not a whole number", value)
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", value)
		}
		field.SetFloat(n)
	default:
		return fmt.Errorf("fields of type %s cannot be set", field.Type())
	}

	return nil
}

func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a date, use YYYY-MM-DD or YYYY-MM-DD HH:MM", value)
}
