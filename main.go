package main

import "github.com/jake-scott/ondus-bridge/cmd"

func main() {
	cmd.Execute()
}
