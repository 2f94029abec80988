package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestDescribe(t *testing.T) {
	out := run(t, "describe")
	require.Contains(t, out, "target x86")
	require.Contains(t, out, "recipes:")
	require.Contains(t, out, "rr")
	require.Contains(t, out, "rel8 branch")
}

func TestDescribeOpcode(t *testing.T) {
	out := run(t, "describe", "iadd_imm")
	require.Contains(t, out, "x86_64 iadd_imm.i64:")
	require.Contains(t, out, "x86_32 iadd_imm.i32:")
	require.Contains(t, out, "if imm_fits_i8: rib")
	require.Contains(t, out, "rid")
}

func TestDescribeTypeless(t *testing.T) {
	out := run(t, "describe", "return")
	require.Contains(t, out, "x86_64 return:")
	require.Contains(t, out, "x86_32 return:")
	require.Contains(t, out, "ret")
}

func TestDescribeGuards(t *testing.T) {
	out := run(t, "describe", "popcnt")
	require.Contains(t, out, "if has_popcnt: bitcnt")
}

func TestDescribeUnknownOpcode(t *testing.T) {
	root := newRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"describe", "frobnicate"})
	require.ErrorContains(t, root.Execute(), "unknown opcode")
}

func TestSettings(t *testing.T) {
	out := run(t, "settings")
	require.Contains(t, out, "has_popcnt")
	require.Contains(t, out, "has_lzcnt")
	require.Contains(t, out, "has_bmi1")
}

func TestGenToStdout(t *testing.T) {
	out := run(t, "gen", "-o", "-")
	require.True(t, strings.HasPrefix(out, "// Code generated by encgen"))
	require.Contains(t, out, "package x86")
}

func TestGenToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables_x86.go")
	run(t, "gen", "-o", path, "-p", "tables")
	src, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(src), "package tables")
}
