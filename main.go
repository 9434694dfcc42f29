package main

import "pseudobench/cmd"

func main() {
	cmd.Execute()
}
