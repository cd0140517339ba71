package main

import "facts/cmd"

func main() {
	cmd.Execute()
}
