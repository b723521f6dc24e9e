package main

import "github.com/kamusis/hubctl/cmd"

func main() {
	cmd.Execute()
}
