// SPDX-FileCopyrightText: (C) 2025 Keyparcel Authors
// SPDX-License-Identifier: Apache 2.0

package main

import "github.com/keyparcel/keyparcel/cmd"

func main() {
	cmd.Execute()
}
