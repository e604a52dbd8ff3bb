// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Rainbow - Rainbow ASCII Protocol Poller
//
// A CLI tool for polling devices on a Rainbow ASCII bus and reporting
// their data in human-readable format.

package main

import (
	"os"

	"github.com/Thermoquad/rainbow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
