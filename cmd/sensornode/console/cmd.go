// Interactive configuration console, the serial command surface of the
// device ported to a terminal: `ssid`, `password`, `show`, `help`.
package console

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
	"github.com/windevs/sensornode/cmd/sensornode/subcmd"
	"github.com/windevs/sensornode/internal/admin"
	"github.com/windevs/sensornode/internal/state"
)

var Mod = subcmd.Mod{Name: "console", Main: Main}

var suggests = []prompt.Suggest{
	{Text: "ssid", Description: "Set the WiFi SSID"},
	{Text: "password", Description: "Set the WiFi password"},
	{Text: "show", Description: "Show stored configuration"},
	{Text: "help", Description: "Show help"},
}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)

	console := &admin.Console{
		Log:     g.Log,
		Store:   g.Store,
		Restart: g.RequestRestart,
	}
	exec := func(line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		out, err := console.Exec(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		if out != "" {
			fmt.Println(out)
		}
		if g.RestartRequested() {
			// config committed, hand over to a fresh process
			os.Exit(0)
		}
	}

	if isatty.IsTerminal(os.Stdin.Fd()) {
		p := prompt.New(exec, completer, prompt.OptionPrefix("sensornode> "))
		p.Run()
		return nil
	}
	scan := bufio.NewScanner(os.Stdin)
	for scan.Scan() {
		exec(scan.Text())
	}
	return scan.Err()
}

func completer(d prompt.Document) []prompt.Suggest {
	return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
}
