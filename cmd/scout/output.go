package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// outputJSON outputs data as pretty-printed JSON to stdout.
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// FatalError writes an error message to stderr and exits with code 1.
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// FatalErrorRespectJSON reports an error honoring --json: a JSON object
// on stdout consumers can parse, plain text otherwise.
func FatalErrorRespectJSON(format string, args ...interface{}) {
	if jsonOutput {
		msg := fmt.Sprintf(format, args...)
		encoder := json.NewEncoder(os.Stderr)
		_ = encoder.Encode(map[string]string{"error": msg})
		os.Exit(1)
	}
	FatalError(format, args...)
}
