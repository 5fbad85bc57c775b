package main

import (
	"fmt"
	"io"

	"github.com/style-hub/style-hub/internal/version"
)

// printVersion writes the injected version and commit.
func printVersion(w io.Writer) {
	fmt.Fprintln(w, version.Full())
}
