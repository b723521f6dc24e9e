package cmd

import (
	"fmt"
	"io"
	"os"
)

// ── Unified output helpers ────────────────────────────────────────────────────
// All commands use these functions to ensure consistent icon usage and
// indentation throughout hubctl's output. Diagnostics go to the logger on
// stderr; these lines are the command's result.
//
// Icon semantics:
//   ✓  success / healthy
//   ✗  error / failure          (written to stderr)
//   ⚠  warning
//   ○  skipped / not applicable
//   -  not found / missing
//   ~  neutral info / state change

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// printSection prints a top-level section header, e.g. "=== Remote ===".
func printSection(title string) {
	fmt.Fprintf(stdout, "\n=== %s ===\n", title)
}

// printBullet prints a grouped-section bullet, e.g. "● Storage:".
func printBullet(title string) {
	fmt.Fprintf(stdout, "\n● %s\n", title)
}

// printField prints an aligned "key: value" line.
func printField(key, value string) {
	fmt.Fprintf(stdout, "  %-13s %s\n", key+":", value)
}

func printLine(icon, name, msg string, w io.Writer) {
	if name == "" {
		fmt.Fprintf(w, "  %s  %s\n", icon, msg)
	} else {
		fmt.Fprintf(w, "  %s  [%s] %s\n", icon, name, msg)
	}
}

// printOK prints a success line.
//
//	name = "" → "  ✓  msg"
//	name set  → "  ✓  [name] msg"
func printOK(name, msg string) { printLine("✓", name, msg, stdout) }

// printErr prints an error line to stderr.
func printErr(name, msg string) { printLine("✗", name, msg, stderr) }

// printWarn prints a warning line.
func printWarn(name, msg string) { printLine("⚠", name, msg, stdout) }

// printSkip prints a skipped / not-applicable line.
func printSkip(name, msg string) { printLine("○", name, msg, stdout) }

// printMiss prints a not-found / missing line.
func printMiss(name, msg string) { printLine("-", name, msg, stdout) }

// printInfo prints a neutral informational / state-change line.
func printInfo(name, msg string) { printLine("~", name, msg, stdout) }

func emptyAsNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
