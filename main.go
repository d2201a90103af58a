package main

import (
	"github.com/luma/aswan/cmd"
)

func main() {
	cmd.Execute()
}
