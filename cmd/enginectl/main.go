// enginectl is the operator CLI for the entitlement engine. It drives the
// admin HTTP API: manual blocks, plan changes, risk views and live metrics.
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
