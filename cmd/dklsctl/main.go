// Command dklsctl runs threshold ECDSA key generation and signing between
// parties hosted in one process.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
