// Command sump3pza inspects a project archive: listing its named
// blobs, or extracting one to stdout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/blackmesalabs/sump3/internal/archive"
)

func main() {
	extract := pflag.StringP("extract", "x", "", "Name of the blob to write to stdout.")
	help := pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: sump3pza [options] <file.pza>")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help || pflag.NArg() != 1 {
		pflag.Usage()

		if *help {
			os.Exit(0)
		}

		os.Exit(2)
	}

	f, err := os.Open(pflag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "sump3pza:", err)
		os.Exit(1)
	}
	defer f.Close()

	a, err := archive.Load(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sump3pza:", err)
		os.Exit(1)
	}

	if *extract != "" {
		data, ok := a.File(*extract)
		if !ok {
			fmt.Fprintf(os.Stderr, "sump3pza: no such blob: %s\n", *extract)
			os.Exit(1)
		}

		os.Stdout.Write(data)

		return
	}

	for _, name := range a.Names() {
		data, _ := a.File(name)
		fmt.Printf("%-32s %8d bytes\n", name, len(data))
	}

	fmt.Printf("connected: %v\n", a.Connected())
}
