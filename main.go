package main

import "github.com/oddsync/odds-engine/cmd"

func main() {
	cmd.Execute()
}
