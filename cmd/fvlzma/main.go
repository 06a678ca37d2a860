// fvlzma compresses or decompresses a single blob the way LZMA-compressed
// GUID-defined sections store it.
package main

import (
	"fmt"
	"os"

	"github.com/dargueta/fvkit"
	"github.com/dargueta/fvkit/utilities/compression"
)

func main() {
	if len(os.Args) != 4 || (os.Args[1] != "compress" && os.Args[1] != "decompress") {
		fmt.Fprintf(
			os.Stderr,
			"Compress or decompress a file with LZMA as used in firmware volumes.\n"+
				"Usage: %s compress|decompress input-file output-file\n"+
				"Set FVKIT_XZ_PATH to use a different xz executable.\n",
			os.Args[0])
		os.Exit(1)
	}

	mode := os.Args[1]
	sourceFilePath := os.Args[2]
	outputFilePath := os.Args[3]

	input, err := os.ReadFile(sourceFilePath)
	if err != nil {
		fmt.Fprintf(
			os.Stderr, "Failed to read file: `%v`: %s\n", sourceFilePath, err)
		os.Exit(1)
	}

	registry := compression.NewRegistry(os.Getenv("FVKIT_XZ_PATH"))
	var output []byte
	if mode == "compress" {
		output, err = registry.Compress(input, compression.LZMAGUID)
	} else {
		output, err = registry.Decompress(input, compression.LZMAGUID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error processing file: %s\n", err)
		os.Exit(2)
	}

	err = os.WriteFile(outputFilePath, output, fvkit.DefaultFileMode)
	if err != nil {
		fmt.Fprintf(
			os.Stderr, "Failed to write file: `%v`: %s\n", outputFilePath, err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d bytes (from %d).\n", len(output), len(input))
}
