// Command edusim loads one or more EDU-CPU object files and executes them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"educpu/internal/cpu"
	"educpu/internal/isa"
	"educpu/internal/objfile"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var trace bool
	var maxCycles int

	cmd := &cobra.Command{
		Use:   "edusim <program> [program...]",
		Short: "Execute one or more EDU-CPU object files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(args, trace, maxCycles)
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "Print CPU state before each instruction")
	cmd.Flags().IntVar(&maxCycles, "max-cycles", isa.DefaultMaxCycles, "Maximum number of cycles")
	return cmd
}

func runSimulate(paths []string, trace bool, maxCycles int) error {
	var files []objfile.FileProgram
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		format := objfile.DetectFormat(path, data)
		if len(paths) > 1 && format == objfile.FormatBin {
			return fmt.Errorf("raw binary format (%s) cannot be used when loading multiple files; use .hex or .srec", path)
		}
		program, err := loadFormat(format, data)
		if err != nil {
			return err
		}
		files = append(files, objfile.FileProgram{Path: path, Program: program})
	}

	if len(files) > 1 {
		if errs := objfile.CheckOverlaps(files); len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintf(os.Stderr, "ERROR: %s\n", e)
			}
			return fmt.Errorf("overlapping program files")
		}
	}

	machine := cpu.New()
	for _, f := range files {
		machine.LoadProgram(f.Program)
	}
	machine.Out = os.Stdout
	if trace {
		machine.Trace = os.Stderr
	}

	if err := machine.Run(maxCycles); err != nil {
		fmt.Fprintf(os.Stderr, "\nRuntime error at cycle %d: %v\n", machine.Cycles, err)
		return err
	}
	return nil
}

func loadFormat(format objfile.Format, data []byte) (objfile.Program, error) {
	switch format {
	case objfile.FormatHex:
		return objfile.DecodeHex(string(data))
	case objfile.FormatSrec:
		return objfile.DecodeSrec(string(data))
	default:
		return objfile.DecodeBin(data), nil
	}
}
