package main

import "github.com/mpapenbr/pylonrace-go/cmd"

func main() {
	cmd.Execute()
}
