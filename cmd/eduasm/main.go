// Command eduasm assembles EDU-CPU source into an object file plus a
// listing.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"educpu/internal/asm"
	"educpu/internal/objfile"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "eduasm <source.asm>",
		Short: "Assemble EDU-CPU source into a binary, Intel HEX, or S-record object file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssemble(args[0], format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "bin", "Output format: bin, hex, or srec")
	return cmd
}

func runAssemble(sourcePath, format string) error {
	switch format {
	case "bin", "hex", "srec":
	default:
		return fmt.Errorf("unknown format %q (expected bin, hex, or srec)", format)
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return err
	}

	result, errs := asm.Assemble(string(data))
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", e.Error())
		}
		return fmt.Errorf("%d assembly error(s)", len(errs))
	}

	base := strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath))

	switch objfile.Format(format) {
	case objfile.FormatHex:
		outPath := base + ".hex"
		if err := os.WriteFile(outPath, []byte(objfile.EncodeHex(result.Program)), 0o644); err != nil {
			return err
		}
		fmt.Printf("Intel HEX: %s\n", outPath)
	case objfile.FormatSrec:
		outPath := base + ".srec"
		if err := os.WriteFile(outPath, []byte(objfile.EncodeSrec(result.Program)), 0o644); err != nil {
			return err
		}
		fmt.Printf("Motorola SREC: %s\n", outPath)
	default:
		outPath := base + ".bin"
		bin := objfile.EncodeBin(result.Program)
		if err := os.WriteFile(outPath, bin, 0o644); err != nil {
			return err
		}
		fmt.Printf("Binary:  %s (%d bytes)\n", outPath, len(bin))
	}

	lstPath := base + ".lst"
	if err := os.WriteFile(lstPath, []byte(objfile.GenerateListing(result.Listing)), 0o644); err != nil {
		return err
	}
	fmt.Printf("Listing: %s\n", lstPath)
	return nil
}
