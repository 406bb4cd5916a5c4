package main

import "github.com/jcdickinson/rsdocseek/cmd"

func main() {
	cmd.Execute()
}
