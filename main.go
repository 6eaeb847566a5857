package main

import "mirrorhooks/cmd"

func main() {
	cmd.Execute()
}
