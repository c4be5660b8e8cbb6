package main

import "fieldvisit/cmd/client/cmd"

func main() {
	cmd.Execute()
}
