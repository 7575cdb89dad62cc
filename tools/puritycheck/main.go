// Command puritycheck verifies that the core compile-path packages
// never touch the filesystem, the network, or the wall clock.
//
// Usage:
//
//	go run tools/puritycheck/main.go [-root <module-root>]
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kaori-protocol/kaori/pkg/purity"
)

func main() {
	root := flag.String("root", ".", "Module root directory")
	flag.Parse()

	violations, err := purity.Check(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(2)
	}

	if len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "VIOLATION: %s\n", v)
		}
		fmt.Fprintf(os.Stderr, "\n%d purity violation(s)\n", len(violations))
		os.Exit(1)
	}

	fmt.Println("OK: core packages are pure")
}
