package main

import "github.com/KevinKickass/OpenCircuitCore/cmd/circuitcore/cmd"

func main() {
	cmd.Execute()
}
