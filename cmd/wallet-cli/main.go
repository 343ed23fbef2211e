package main

import "tron-wallet-core/cmd/wallet-cli/cmd"

func main() {
	cmd.Execute()
}
