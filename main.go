package main

import "github.com/lukman83/closeshave/cmd"

func main() {
	cmd.Execute()
}
