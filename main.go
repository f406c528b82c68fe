package main

import "github.com/minidosis/minidosis/cmd"

func main() {
	cmd.Execute()
}
