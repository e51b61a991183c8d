// Command slipinv runs the synthetic slip inversion scenario: observations
// are generated by unit strike slip beneath a hill and inverted assuming a
// flat free surface.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
