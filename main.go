package main

import "github.com/notargets/gobethe/cmd"

func main() {
	cmd.Execute()
}
