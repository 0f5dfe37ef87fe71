// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package main

import (
	"fmt"
	"os"

	answering_machine_cli "github.com/rapidaai/voicemail/api/answering-machine/cli"
)

func main() {
	if err := answering_machine_cli.NewRootCmd(&answering_machine_cli.Dependencies{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
