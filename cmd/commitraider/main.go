package main

import (
	"github.com/DrSkyle/commitraider/cmd/commitraider/commands"
)

func main() {
	commands.Execute()
}
