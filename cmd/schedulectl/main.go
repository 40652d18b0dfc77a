package main

import (
	"fmt"
	"os"

	"github.com/noah-isme/lms-scheduling-api/internal/cli"
)

func main() {
	if err := cli.NewApp(nil).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
