// Command contentctl manages the site dictionaries from the shell: local locale files,
// snapshots, and pushing or pulling content to and from the configured store.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
