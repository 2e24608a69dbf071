package main

import (
	"github.com/luma/resp3d/cmd"
)

func main() {
	cmd.Execute()
}
