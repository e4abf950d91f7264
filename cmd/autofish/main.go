package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"gpo-autofish/internal/game"
	"gpo-autofish/internal/observability"
)

const Title = "GPO Autofish"

func main() {
	defer handlePanic()

	setConsoleTitle(Title)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	root, _ := newRootCmd()
	err := root.ExecuteContext(ctx)
	stop()
	observability.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// handlePanic lifts every key the bot may hold and keeps the console open
// so the message can be read when the program was started by double click.
func handlePanic() {
	if r := recover(); r != nil {
		game.ReleaseAllKeys()
		observability.GetLogger().Error("Unexpected panic.", zap.Any("panic", r), zap.Stack("stack"))
		observability.Sync()

		fmt.Println("\n============ panic ============")
		fmt.Printf("%v\n", r)
		fmt.Print("Press Enter to exit...")
		bufio.NewReader(os.Stdin).ReadString('\n')
		os.Exit(2)
	}
}
