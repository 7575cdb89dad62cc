// Command claimtype-gen writes a starter claim-type document.
//
// Usage:
//
//	go run cmd/claimtype-gen/main.go -namespace earth -name flood [-out dir]
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kaori-protocol/kaori/pkg/claimtypes"
)

func main() {
	namespace := flag.String("namespace", "", "Claim domain (earth, ocean, space, meta)")
	name := flag.String("name", "", "Claim topic, e.g. flood")
	out := flag.String("out", ".", "Output directory")
	flag.Parse()

	if *namespace == "" || *name == "" {
		fmt.Fprintln(os.Stderr, "usage: claimtype-gen -namespace <domain> -name <topic> [-out dir]")
		os.Exit(2)
	}

	path := filepath.Join(*out, fmt.Sprintf("%s.%s.v1.yaml", *namespace, *name))
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "refusing to overwrite %s\n", path)
		os.Exit(1)
	}

	if err := os.WriteFile(path, []byte(claimtypes.Template(*namespace, *name)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", path)
}
