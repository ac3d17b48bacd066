package main

import "github.com/revuekit/revue/cmd"

func main() {
	cmd.Execute()
}
