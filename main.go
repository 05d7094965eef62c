package main

import "github.com/iksnae/festive-connect/cmd"

func main() {
	cmd.Execute()
}
