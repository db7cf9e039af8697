package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/application"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

//renderTable writes records as aligned columns headed by the record's column names
func renderTable[R domain.Row](w io.Writer, records []R) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	var header R
	fmt.Fprintln(tw, strings.Join(header.Columns(), "\t"))

	for _, r := range records {
		values := r.Values()
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = formatCell(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	return tw.Flush()
}

//renderRecord writes one record as a name/value list
func renderRecord(w io.Writer, record domain.Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	values := record.Values()
	for i, column := range record.Columns() {
		value := ""
		if i < len(values) {
			value = formatCell(values[i])
		}
		fmt.Fprintf(tw, "%s:\t%s\n", column, value)
	}

	return tw.Flush()
}

func formatCell(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case bool:
		if value {
			return "yes"
		}
		return "no"
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case fmt.Stringer:
		return value.String()
	}
	return fmt.Sprint(v)
}

//failure turns err into the error reported to the user. Validation errors list every
//invalid field.
func failure(err error, entity string) error {
	if err == nil {
		return nil
	}

	if ve, ok := domain.AsValidationErrors(err); ok {
		lines := []string{application.MessageInvalid + ":"}
		for _, field := range ve.Fields() {
			lines = append(lines, fmt.Sprintf("  %s: %s", field, ve[field]))
		}
		return errors.New(strings.Join(lines, "\n"))
	}

	message := application.UserMessage(err, entity)
	if message == application.MessageUnexpected {
		return fmt.Errorf("%s (%s)", message, err.Error())
	}
	return errors.New(message)
}

//formFailure reports a failed submit using the messages collected by the form
func formFailure(err error, message string, invalid domain.ValidationErrors) error {
	if errors.Is(err, application.ErrInvalid) && len(invalid) > 0 {
		return failure(invalid, "")
	}
	if message != "" {
		return errors.New(message)
	}
	return failure(err, "")
}

//printStats writes the number of API requests per method and status code
func printStats(w io.Writer, gatherer prometheus.Gatherer) {
	families, err := gatherer.Gather()
	if err != nil {
		fmt.Fprintf(w, "unable to gather request statistics: %s\n", err.Error())
		return
	}

	lines := []string{}
	for _, family := range families {
		if family.GetName() != "farmdash_api_requests_total" {
			continue
		}

		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			lines = append(lines, fmt.Sprintf("%s\t%s\t%.0f",
				strings.ToUpper(labels["method"]), labels["code"], metric.GetCounter().GetValue()))
		}
	}

	sort.Strings(lines)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tSTATUS\tREQUESTS")
	for _, line := range lines {
		fmt.Fprintln(tw, line)
	}
	tw.Flush()
}
