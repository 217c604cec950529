package main

import "raritp-backend/cmd/raritp/cmd"

func main() {
	cmd.Execute()
}
