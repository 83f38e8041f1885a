package main

import "github.com/shono-io/macrelease/cmd"

func main() {
	cmd.Execute()
}
