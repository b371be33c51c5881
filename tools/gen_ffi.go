// Package main generates a binding-table skeleton from the libtorchbind
// C header.
//
// NOTE: This generator uses simple regex-based parsing which works for the
// current libtorchbind exports but may be fragile with future header
// changes. The output is a starting point: argument and return types still
// need to be filled in by hand against the header.
package main

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode"
)

type exportedFunction struct {
	Symbol  string
	LineNum int
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <path-to-libtorchbind.h>\n", os.Args[0])
		os.Exit(1)
	}

	headerPath := os.Args[1]
	file, err := os.Open(headerPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open header file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	// Matches declarations like: EXPORT_API(TensorHandle) THSTensor_new(...)
	exportPattern := regexp.MustCompile(`^\s*EXPORT_API\([^)]*\)\s+(THS\w+)\s*\(`)

	var functions []exportedFunction
	lineNum := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*") {
			continue
		}

		if matches := exportPattern.FindStringSubmatch(line); len(matches) > 1 {
			functions = append(functions, exportedFunction{
				Symbol:  matches[1],
				LineNum: lineNum,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	if len(functions) == 0 {
		fmt.Fprintln(os.Stderr, "Error: No EXPORT_API declarations found. Header may have changed.")
		os.Exit(1)
	}

	seen := make(map[string]bool)
	for _, fn := range functions {
		if seen[fn.Symbol] {
			fmt.Fprintf(os.Stderr, "Error: Duplicate symbol: %s\n", fn.Symbol)
			os.Exit(1)
		}
		seen[fn.Symbol] = true
	}

	// The error query must always be present: every other binding depends
	// on it.
	if !seen["THSTorch_get_and_reset_last_err"] {
		fmt.Fprintln(os.Stderr, "Error: THSTorch_get_and_reset_last_err not found. Parser may be broken.")
		os.Exit(1)
	}

	generateBindings(functions, headerPath)
}

// fieldName converts a shim symbol to the binding field naming used in
// the torch package: THSTensor_to_device becomes tensorToDevice.
func fieldName(symbol string) string {
	name := strings.TrimPrefix(symbol, "THS")
	parts := strings.Split(name, "_")

	var b strings.Builder
	for i, part := range parts {
		if part == "" {
			continue
		}
		runes := []rune(part)
		if i == 0 {
			runes[0] = unicode.ToLower(runes[0])
		} else {
			runes[0] = unicode.ToUpper(runes[0])
		}
		b.WriteString(string(runes))
	}
	return b.String()
}

func generateBindings(functions []exportedFunction, headerPath string) {
	fmt.Println("package torch")
	fmt.Println()
	fmt.Printf("// Auto-generated from: %s\n", headerPath)
	fmt.Printf("// Generated on: %s\n", time.Now().Format(time.RFC3339))
	fmt.Println("// Generator: tools/gen_ffi.go")
	fmt.Printf("// Parsed %d exported functions\n", len(functions))
	fmt.Println("//")
	fmt.Println("// Skeleton binding table; fill in the signatures against the header.")
	fmt.Println("type nativeAPI struct {")
	for _, fn := range functions {
		fmt.Printf("\t%-40s func() // %s (line %d)\n", fieldName(fn.Symbol), fn.Symbol, fn.LineNum)
	}
	fmt.Println("}")
	fmt.Println()

	fmt.Println("var nativeBindings = []struct {")
	fmt.Println("\tname string")
	fmt.Println("\tfn   any")
	fmt.Println("}{")
	for _, fn := range functions {
		fmt.Printf("\t{%q, nil}, // &n.%s\n", fn.Symbol, fieldName(fn.Symbol))
	}
	fmt.Println("}")
}
