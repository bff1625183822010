package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

func main() {
	err := newApp().Run(os.Args)
	if err == nil {
		return
	}

	if msg := err.Error(); msg != "" {
		fmt.Fprintln(cli.ErrWriter, msg)
	}
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		cli.OsExiter(exitErr.ExitCode())
		return
	}
	cli.OsExiter(1)
}
