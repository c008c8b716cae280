// Command sample-generator writes coherent sample CSVs for one or more
// businesses, sliced into trailing 3 and 6 month windows.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func main() {
	out := flag.String("out", "data", "Output directory")
	names := flag.String("businesses", "business_a,business_b", "Comma-separated business names")
	profile := flag.String("profile", "", "Force a profile (healthy, stable, struggling); random when empty")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	if *profile != "" {
		if _, ok := shapes[*profile]; !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown profile %q\n", *profile)
			os.Exit(1)
		}
	}

	g := newGenerator(*seed)
	end := time.Now().UTC()

	for _, name := range strings.Split(*names, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p := *profile
		if p == "" {
			p = g.pickProfile()
		}
		fmt.Printf("Generating 6m of data for '%s' with profile: %s\n", name, p)

		ds := g.generate(p, 6, end)
		for _, months := range []int{6, 3} {
			dir, err := g.writeWindow(filepath.Join(*out, name), ds, months)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("  wrote %s\n", dir)
		}
	}

	fmt.Printf("Data generated successfully in the '%s' directory.\n", *out)
}
