// Command sump3romsize reports the bit width of the view ROM literal
// embedded in a pod's Verilog source, the same accounting the
// hardware core's build scripts use to size the ROM's backing memory.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/blackmesalabs/sump3/internal/topology"
)

func main() {
	help := pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: sump3romsize <file.v> [file.v ...]")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help || pflag.NArg() == 0 {
		pflag.Usage()

		if *help {
			os.Exit(0)
		}

		os.Exit(2)
	}

	total := 0

	for _, path := range pflag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "sump3romsize:", err)
			os.Exit(1)
		}

		kbits := topology.ROMBitSize(string(data))
		total += kbits

		fmt.Printf("%-40s %6d kbits\n", path, kbits)
	}

	if pflag.NArg() > 1 {
		fmt.Printf("%-40s %6d kbits\n", "total", total)
	}
}
