package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"

	"depthcharge/commands"
)

func main() {
	parser := flags.NewParser(&commands.DepthCharge, flags.HelpFlag|flags.PassDoubleDash)

	_, err := parser.Parse()
	if err != nil {
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}

		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
