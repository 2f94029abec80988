// Command encgen compiles the x86 encoding definition and inspects or
// exports the resulting dispatch tables.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/encgen/encgen"
	"github.com/encgen/encgen/internal/enc"
	"github.com/encgen/encgen/internal/ir"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "encgen",
		Short:         "x86 encoding table compiler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress to stderr")

	logger := func() *zap.Logger {
		if !verbose {
			return zap.NewNop()
		}
		l, err := zap.NewDevelopment()
		if err != nil {
			return zap.NewNop()
		}
		return l
	}

	root.AddCommand(newGenCmd(logger), newDescribeCmd(), newSettingsCmd())
	return root
}

// newGenCmd renders the compiled tables as a generated Go source file.
func newGenCmd(logger func() *zap.Logger) *cobra.Command {
	var out, pkg string
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Write the compiled tables as a generated Go source file",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger()
			defer log.Sync() //nolint:errcheck // best effort on exit

			src, err := encgen.GenerateSource(pkg)
			if err != nil {
				return err
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(src)
				return err
			}
			if err := os.WriteFile(out, src, 0o644); err != nil {
				return err
			}
			log.Info("wrote generated tables",
				zap.String("path", out),
				zap.Int("bytes", len(src)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "tables_x86.go", `output path, or "-" for stdout`)
	cmd.Flags().StringVarP(&pkg, "package", "p", "x86", "package name of the generated file")
	return cmd
}

// newDescribeCmd prints the table shape of the definition, or the
// encodings of a single opcode across modes and controlling types.
func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe [opcode]",
		Short: "Print the dispatch-table layout, or the encodings of one opcode",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := encgen.NewTarget()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return describeOpcode(cmd.OutOrStdout(), t.Tables(), args[0])
			}
			describeTarget(cmd.OutOrStdout(), t.Tables())
			return nil
		},
	}
}

func describeTarget(w io.Writer, tb *enc.Tables) {
	fmt.Fprintf(w, "target %s: %d recipes, %d instruction predicates, %d settings\n",
		tb.Name, len(tb.Recipes), len(tb.PredNames), len(tb.Settings))
	fmt.Fprintf(w, "enclists: %d words, level2: %d entries\n", len(tb.Enclists), len(tb.Level2))
	for mode, l1 := range tb.Level1 {
		fmt.Fprintf(w, "level1[%d]: %d slots\n", mode, len(l1))
	}

	fmt.Fprintln(w, "\nrecipes:")
	for i, r := range tb.Recipes {
		size := fmt.Sprintf("%d bytes", r.Sizing.BaseSize)
		if br := r.Sizing.Range; br.IsBranch() {
			size += fmt.Sprintf(", rel%d branch", br.Bits)
		}
		fmt.Fprintf(w, "  %3d %-10s ins=%d outs=%d clobbers_flags=%-5v %s\n",
			i, r.Name, len(r.Constraints.Ins), len(r.Constraints.Outs),
			r.Constraints.ClobbersFlags, size)
	}
}

var modeNames = []string{"x86_64", "x86_32"}

// describeTypes covers every controlling type a level-1 table can key on,
// starting with the zero type used by typeless instructions.
var describeTypes = []ir.Type{0, ir.TypeI8, ir.TypeI16, ir.TypeI32, ir.TypeI64, ir.TypeF32, ir.TypeF64}

func describeOpcode(w io.Writer, tb *enc.Tables, name string) error {
	op := ir.OpcodeByName(name)
	if op == ir.OpcodeInvalid {
		return fmt.Errorf("unknown opcode %q", name)
	}

	found := false
	for mode := range tb.Level1 {
		for _, typ := range describeTypes {
			offset, ok := findEnclist(tb, mode, uint8(typ), uint16(op))
			if !ok {
				continue
			}
			found = true
			if typ == 0 {
				fmt.Fprintf(w, "%s %s:\n", modeNames[mode], op)
			} else {
				fmt.Fprintf(w, "%s %s.%s:\n", modeNames[mode], op, typ)
			}
			printEnclist(w, tb, offset)
		}
	}
	if !found {
		fmt.Fprintf(w, "%s: no encodings; subject to legalization\n", op)
	}
	return nil
}

// findEnclist probes the two dispatch levels the way the runtime iterator
// does and returns the encoding-list offset for (mode, type, opcode).
func findEnclist(tb *enc.Tables, mode int, key uint8, op uint16) (uint32, bool) {
	l1 := tb.Level1[mode]
	mask1 := uint32(len(l1) - 1)
	h1 := enc.HashKey(uint32(key))
	for i := uint32(0); i <= mask1; i++ {
		slot := &l1[enc.Probe(h1, i, mask1)]
		if slot.Key == enc.Level1KeyEmpty {
			return 0, false
		}
		if slot.Key != key {
			continue
		}
		if slot.L2Offset == enc.Level2OffsetNone {
			return 0, false
		}
		l2 := tb.Level2[slot.L2Offset : slot.L2Offset+slot.L2Mask+1]
		h2 := enc.HashKey(uint32(op))
		for j := uint32(0); j <= slot.L2Mask; j++ {
			s2 := &l2[enc.Probe(h2, j, slot.L2Mask)]
			if s2.Key == op {
				return s2.Offset, true
			}
			if s2.Key == uint16(ir.OpcodeInvalid) {
				return 0, false
			}
		}
		return 0, false
	}
	return 0, false
}

// printEnclist walks one encoding list, rendering each entry with the
// guards that precede it.
func printEnclist(w io.Writer, tb *enc.Tables, offset uint32) {
	var guards []string
	for pos := offset; ; {
		word := tb.Enclists[pos]
		pos++
		switch word >> enc.ListTagShift {
		case enc.ListTagEntry:
			bits := tb.Enclists[pos]
			pos++
			line := fmt.Sprintf("%s bits=%#04x", tb.Recipes[word&enc.ListRecipeMask].Name, bits)
			if len(guards) > 0 {
				line = "if " + strings.Join(guards, " && ") + ": " + line
				guards = guards[:0]
			}
			fmt.Fprintf(w, "  %s\n", line)
		case enc.ListTagInstPred:
			guards = append(guards, tb.PredNames[word&enc.ListPredMask])
		case enc.ListTagIsaPred:
			guards = append(guards, tb.Settings[word&enc.ListPredMask])
		case enc.ListTagStop:
			return
		}
	}
}

// newSettingsCmd lists the CPU feature settings encodings can be guarded on.
func newSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "List the CPU feature settings of the definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := encgen.NewTarget()
			if err != nil {
				return err
			}
			for bit, name := range t.Tables().Settings {
				fmt.Fprintf(cmd.OutOrStdout(), "bit %2d: %s\n", bit, name)
			}
			return nil
		},
	}
}
