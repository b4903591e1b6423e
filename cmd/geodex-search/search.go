package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datalode/geodex"
)

var (
	flagWhere    []string
	flagBetween  []string
	flagNot      []string
	flagSelect   []string
	flagLimit    int
	flagOffset   int
	flagArchived bool
	flagCSV      bool
)

func init() {
	searchCmd.Flags().StringArrayVar(&flagWhere, "where", nil, "equality predicate, field=value (repeatable)")
	searchCmd.Flags().StringArrayVar(&flagBetween, "between", nil, "interval predicate, field=low,high (repeatable)")
	searchCmd.Flags().StringArrayVar(&flagNot, "not", nil, "negated equality predicate, field=value (repeatable)")
	searchCmd.Flags().StringSliceVar(&flagSelect, "select", nil, "project hits onto these fields")
	searchCmd.Flags().IntVar(&flagLimit, "limit", 20, "maximum hits per page")
	searchCmd.Flags().IntVar(&flagOffset, "offset", 0, "skip the first n hits")
	searchCmd.Flags().BoolVar(&flagArchived, "archived", false, "include archived datasets")
	searchCmd.Flags().BoolVar(&flagCSV, "csv", false, "emit CSV instead of JSON lines")
}

var searchCmd = &cobra.Command{
	Use:   "search <product>",
	Short: "Search datasets of a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		defer client.Close()

		builder, err := applyPredicates(client.Search(args[0]))
		if err != nil {
			return err
		}
		builder = builder.Offset(flagOffset).Limit(flagLimit)
		if len(flagSelect) > 0 {
			builder = builder.Select(flagSelect...)
		}
		if flagArchived {
			builder = builder.IncludeArchived()
		}

		res, err := builder.Do(context.Background())
		if err != nil {
			return err
		}

		if flagCSV {
			return writeCSV(res)
		}
		return writeJSONLines(res)
	},
}

// applyPredicates translates the --where/--between/--not flags onto the
// builder. Values stay strings: field parsing handles the conversion.
func applyPredicates(b *geodex.SearchBuilder) (*geodex.SearchBuilder, error) {
	for _, w := range flagWhere {
		field, value, err := splitPredicate(w, "--where")
		if err != nil {
			return nil, err
		}
		b = b.Where(field, value)
	}
	for _, w := range flagBetween {
		field, value, err := splitPredicate(w, "--between")
		if err != nil {
			return nil, err
		}
		low, high, ok := strings.Cut(value, ",")
		if !ok {
			return nil, fmt.Errorf("--between %q: want field=low,high", w)
		}
		b = b.Between(field, orNil(low), orNil(high))
	}
	for _, w := range flagNot {
		field, value, err := splitPredicate(w, "--not")
		if err != nil {
			return nil, err
		}
		b = b.Not(field, value)
	}
	return b, nil
}

func splitPredicate(s, flag string) (string, string, error) {
	field, value, ok := strings.Cut(s, "=")
	if !ok || field == "" {
		return "", "", fmt.Errorf("%s %q: want field=value", flag, s)
	}
	return field, value, nil
}

// orNil maps an empty bound to an open one.
func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func writeJSONLines(res *geodex.Result) error {
	enc := json.NewEncoder(os.Stdout)
	for i := range res.Hits {
		h := &res.Hits[i]
		line := map[string]any{"id": h.ID.String(), "product": h.Product}
		if h.Archived {
			line["archived"] = true
		}
		if h.Values != nil {
			line["values"] = h.Values
		}
		if h.Metadata != nil {
			line["metadata"] = h.Metadata
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("encode hit: %w", err)
		}
	}
	fmt.Fprintf(os.Stderr, "%d of %d hits\n", len(res.Hits), res.Total)
	return nil
}

func writeCSV(res *geodex.Result) error {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	header := []string{"id", "product", "archived"}
	valueCols := projectedColumns(res)
	header = append(header, valueCols...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range res.Hits {
		h := &res.Hits[i]
		row := []string{h.ID.String(), h.Product, fmt.Sprint(h.Archived)}
		for _, col := range valueCols {
			row = append(row, fmt.Sprint(h.Values[col]))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return nil
}

// projectedColumns collects the union of projected field names, sorted for a
// stable header.
func projectedColumns(res *geodex.Result) []string {
	seen := map[string]bool{}
	for i := range res.Hits {
		for name := range res.Hits[i].Values {
			seen[name] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for name := range seen {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols
}
