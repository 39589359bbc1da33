package main

import "github.com/Alturino/hiicart/cmd"

func main() {
	cmd.Start()
}
