package main

import (
	"github.com/sw33tLie/spotscope/cmd"
)

func main() {
	cmd.Execute()
}
