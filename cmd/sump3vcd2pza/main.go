// Command sump3vcd2pza converts a Value Change Dump capture into a
// project archive carrying a synthetic digital_rle[0][0] view and its
// decoded samples, for loading into sump3host or any PZA-aware
// viewer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/blackmesalabs/sump3/internal/vcdimport"
)

func main() {
	out := pflag.StringP("output", "o", "", "Output .pza path; defaults to the input path with its extension replaced.")
	help := pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: sump3vcd2pza [options] <file.vcd>")
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

	inPath := pflag.Arg(0)

	outPath := *out
	if outPath == "" {
		outPath = replaceExt(inPath, ".pza")
	}

	in, err := os.Open(inPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sump3vcd2pza:", err)
		os.Exit(1)
	}
	defer in.Close()

	a, err := vcdimport.Import(in)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sump3vcd2pza:", err)
		os.Exit(1)
	}

	outFile, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sump3vcd2pza:", err)
		os.Exit(1)
	}
	defer outFile.Close()

	if err := a.Save(outFile); err != nil {
		fmt.Fprintln(os.Stderr, "sump3vcd2pza:", err)
		os.Exit(1)
	}
}

func replaceExt(path, ext string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[:i] + ext
		}
	}

	return path + ext
}
