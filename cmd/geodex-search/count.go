package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/datalode/geodex"
)

var (
	flagCountWhere   []string
	flagCountBetween []string
	flagCountNot     []string
	flagTimeField    string
	flagStart        string
	flagEnd          string
	flagPeriod       string
)

func init() {
	countCmd.Flags().StringArrayVar(&flagCountWhere, "where", nil, "equality predicate, field=value (repeatable)")
	countCmd.Flags().StringArrayVar(&flagCountBetween, "between", nil, "interval predicate, field=low,high (repeatable)")
	countCmd.Flags().StringArrayVar(&flagCountNot, "not", nil, "negated equality predicate, field=value (repeatable)")
	countCmd.Flags().StringVar(&flagTimeField, "time-field", "", "bucket counts over this datetime field")
	countCmd.Flags().StringVar(&flagStart, "start", "", "bucket range start (RFC 3339)")
	countCmd.Flags().StringVar(&flagEnd, "end", "", "bucket range end (RFC 3339)")
	countCmd.Flags().StringVar(&flagPeriod, "period", "year", "bucket size: year or month")
}

var countCmd = &cobra.Command{
	Use:   "count <product>",
	Short: "Count datasets of a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connect()
		if err != nil {
			return err
		}
		defer client.Close()

		flagWhere, flagBetween, flagNot = flagCountWhere, flagCountBetween, flagCountNot
		builder, err := applyPredicates(client.Search(args[0]))
		if err != nil {
			return err
		}

		ctx := context.Background()
		if flagTimeField == "" {
			n, err := builder.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		}

		start, err := time.Parse(time.RFC3339, flagStart)
		if err != nil {
			return fmt.Errorf("--start must be RFC 3339: %w", err)
		}
		end, err := time.Parse(time.RFC3339, flagEnd)
		if err != nil {
			return fmt.Errorf("--end must be RFC 3339: %w", err)
		}

		buckets, err := builder.CountOverTime(ctx, flagTimeField, start, end, geodex.Period(flagPeriod))
		if err != nil {
			return err
		}
		for _, b := range buckets {
			fmt.Printf("%s\t%d\n", b.Start.Format("2006-01"), b.Count)
		}
		return nil
	},
}
