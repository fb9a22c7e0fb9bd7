package main

import "github.com/jmehdipour/person-service/cmd"

func main() {
	cmd.Execute()
}
