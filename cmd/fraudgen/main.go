// Command fraudgen generates labelled synthetic payment datasets and their
// feature tables.
//
// Usage:
//
//	fraudgen dataset [--config configs/generation.yaml] [--seed 42] [--out data]
//	fraudgen features [--in data/transactions.csv] [--calibrate]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
