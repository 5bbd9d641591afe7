// Command resolved runs the delivery exception resolution service. The
// resolve subcommand processes one exception from a JSON file or stdin; the
// serve subcommand exposes the hosted agents over the task exchange JSON-RPC
// endpoint.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
