package main

import "scanq/cmd"

func main() {
	cmd.Run()
}
