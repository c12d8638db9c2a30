package main

import "marketplace-core/cmd/market-cli/cmd"

func main() {
	cmd.Execute()
}
