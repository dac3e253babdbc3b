package main

import "github.com/nextlevelbuilder/wareact/cmd"

func main() {
	cmd.Execute()
}
