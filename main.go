package main

import (
	cmd "github.com/tapgrid/cli/cmd"
)

func main() {
	cmd.Execute()
}
