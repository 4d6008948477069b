package main

import (
	"connectfill/cmd/connectfill/commands"
	"context"
)

func main() {
	commands.ExecuteContext(context.Background())
}
