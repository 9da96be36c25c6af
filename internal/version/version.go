// Package version provides version information for the linescan tools.
package version

import (
	"fmt"
	"os"
)

const (
	// Name of the project.
	Name string = "linescan"
	// Version of the project.
	Version string = "1.0.0-develop"
)

// String returns a plain text representation of the version.
func String() string {
	return fmt.Sprintf("%s %s", Name, Version)
}

// PrintAndExit prints the program version and exits.
func PrintAndExit() {
	fmt.Println(String())
	os.Exit(0)
}
