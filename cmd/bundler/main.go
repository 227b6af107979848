package main

import "github.com/localis/runtime-bundler/cmd/bundler/cmd"

func main() {
	cmd.Execute()
}
