package main

import (
	"context"

	"github.com/scholarscout/scraper/cmd/scholarctl/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
