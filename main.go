package main

import (
	"github.com/AzielCF/az-wap-ingest/cmd"
)

func main() {
	cmd.Execute()
}
