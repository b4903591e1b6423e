// Command geodex-search queries a geodex dataset index from the terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datalode/geodex"
)

var (
	flagDriver   string
	flagAddrs    []string
	flagUsername string
	flagPassword string
	flagDSN      string
	flagProducts []string
	flagVerbose  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "geodex-search",
		Short: "Search a geodex dataset index",
		Long: `geodex-search runs searchable-field queries against a geodex backend.
Product definitions are loaded from YAML files so query terms can be
translated into backend predicates.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagDriver, "driver", "redis", "backend driver: redis or postgres")
	rootCmd.PersistentFlags().StringSliceVar(&flagAddrs, "addr", []string{"localhost:6379"}, "redis address")
	rootCmd.PersistentFlags().StringVar(&flagUsername, "username", "", "redis username")
	rootCmd.PersistentFlags().StringVar(&flagPassword, "password", "", "redis password")
	rootCmd.PersistentFlags().StringVar(&flagDSN, "dsn", "", "postgres connection string")
	rootCmd.PersistentFlags().StringSliceVar(&flagProducts, "product-file", nil, "product definition YAML file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect builds a client from the persistent flags.
func connect() (*geodex.Client, error) {
	logger := zap.NewNop()
	if flagVerbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
		logger = l
	}

	opts := []geodex.Option{geodex.WithLogger(logger)}
	switch flagDriver {
	case "redis":
		opts = append(opts, geodex.WithRedis(flagAddrs...))
		if flagUsername != "" || flagPassword != "" {
			opts = append(opts, geodex.WithRedisAuth(flagUsername, flagPassword))
		}
	case "postgres":
		opts = append(opts, geodex.WithPostgres(flagDSN))
	default:
		return nil, fmt.Errorf("unknown driver %q", flagDriver)
	}

	client, err := geodex.New(opts...)
	if err != nil {
		return nil, err
	}

	if len(flagProducts) > 0 {
		if err := client.Products().LoadFiles(context.Background(), flagProducts...); err != nil {
			client.Close()
			return nil, err
		}
	}
	return client, nil
}
