package meta

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"

	"github.com/encgen/encgen/internal/enc"
)

// Source renders the built dispatch tables as a generated Go source file
// for embedding in a backend. Only the data tables are rendered: recipe
// metadata and predicate functions live in the ISA package, so the file
// references instruction predicates by derived identifier (predImmFitsI8
// for "imm_fits_i8") which the embedding package must define.
func Source(t *enc.Tables, pkg string) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "// Code generated by encgen from the %s definition. DO NOT EDIT.\n\n", t.Name)
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	fmt.Fprintf(&b, "import \"github.com/encgen/encgen/internal/enc\"\n\n")

	fmt.Fprintf(&b, "// enclists is the encoding-list bytecode pool (%d words).\n", len(t.Enclists))
	fmt.Fprintf(&b, "var enclists = [...]uint16{")
	for i, w := range t.Enclists {
		if i%8 == 0 {
			b.WriteString("\n\t")
		}
		fmt.Fprintf(&b, "%#04x, ", w)
	}
	fmt.Fprintf(&b, "\n}\n\n")

	fmt.Fprintf(&b, "// level1 holds one dispatch table per cpu mode, keyed by controlling type.\n")
	fmt.Fprintf(&b, "var level1 = [...][]enc.Level1Entry{\n")
	for mode, l1 := range t.Level1 {
		fmt.Fprintf(&b, "\t%d: {\n", mode)
		for _, e := range l1 {
			fmt.Fprintf(&b, "\t\t{Key: %#02x, Legalize: %d, L2Mask: %#x, L2Offset: %#x},\n",
				e.Key, e.Legalize, e.L2Mask, e.L2Offset)
		}
		fmt.Fprintf(&b, "\t},\n")
	}
	fmt.Fprintf(&b, "}\n\n")

	fmt.Fprintf(&b, "// level2 is the concatenation of all opcode dispatch tables.\n")
	fmt.Fprintf(&b, "var level2 = [...]enc.Level2Entry{\n")
	for _, e := range t.Level2 {
		fmt.Fprintf(&b, "\t{Key: %#04x, Offset: %#x},\n", e.Key, e.Offset)
	}
	fmt.Fprintf(&b, "}\n\n")

	fmt.Fprintf(&b, "// recipeNames is indexed by Encoding.Recipe().\n")
	fmt.Fprintf(&b, "var recipeNames = [...]string{\n")
	for _, r := range t.Recipes {
		fmt.Fprintf(&b, "\t%q,\n", r.Name)
	}
	fmt.Fprintf(&b, "}\n\n")

	fmt.Fprintf(&b, "// instPreds is indexed by the predicate number in guard words.\n")
	fmt.Fprintf(&b, "var instPreds = [...]enc.InstPred{\n")
	for _, name := range t.PredNames {
		fmt.Fprintf(&b, "\t%s,\n", predIdent(name))
	}
	fmt.Fprintf(&b, "}\n\n")

	fmt.Fprintf(&b, "// settingNames is indexed by the flag bit in guard words.\n")
	fmt.Fprintf(&b, "var settingNames = [...]string{\n")
	for _, name := range t.Settings {
		fmt.Fprintf(&b, "\t%q,\n", name)
	}
	fmt.Fprintf(&b, "}\n")

	src, err := format.Source(b.Bytes())
	if err != nil {
		return nil, fmt.Errorf("formatting generated source: %w", err)
	}
	return src, nil
}

// predIdent derives the Go identifier for a predicate name, e.g.
// "imm_fits_i8" becomes "predImmFitsI8".
func predIdent(name string) string {
	var sb strings.Builder
	sb.WriteString("pred")
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(part[:1]))
		sb.WriteString(part[1:])
	}
	return sb.String()
}
