package main

import "github.com/nextlevelbuilder/supportdesk/cmd"

func main() {
	cmd.Execute()
}
