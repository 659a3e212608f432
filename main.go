package main

import "PlaySync/cmd"

func main() {
	cmd.Execute()
}
