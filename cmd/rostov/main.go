// Command rostov is the file-transfer CLI the spec places outside the RDT
// core (§1): serve/upload/download subcommands wired with cobra, the way
// the teacher wires its own root command.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "rostov",
		Short: "reliable data transport file server and client",
	}
	root.AddCommand(serveCmd, uploadCmd, downloadCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
