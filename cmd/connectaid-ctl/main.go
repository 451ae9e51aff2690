package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"connectaid/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Daemon socket path")
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		fmt.Println("usage: connectaid-ctl [-s socket] <command> [args...]")
		fmt.Println("commands: voice-open voice-turn voice-close manual-open manual-category")
		fmt.Println("          manual-details manual-simplify manual-continue manual-proceed")
		fmt.Println("          manual-submit cancel status history")
		os.Exit(2)
	}

	reply, err := ipc.SendCommand(*socket, args[0], args[1:]...)
	if err != nil {
		fmt.Println("connectaid:", err)
		os.Exit(1)
	}
	if reply != "" {
		fmt.Println(reply)
	}
}
