package main

import "github.com/user/clipengine/cmd"

func main() {
	cmd.Execute()
}
