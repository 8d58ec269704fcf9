package main

import "github.com/doclens/doclens/cmd/doclens/cmd"

func main() {
	cmd.Execute()
}
