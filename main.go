package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	errx "github.com/agentdesk/server/internal/core/error"
	logx "github.com/agentdesk/server/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logx.Debug().Err(err).Int("status", errx.StatusOf(err)).Msg("command failed")
		fmt.Fprintln(os.Stderr, "error:", userMessage(err))
		stop()
		os.Exit(1)
	}
}

// userMessage keeps caller mistakes verbatim and hides internal detail
// behind the error's safe message.
func userMessage(err error) string {
	switch errx.StatusOf(err) {
	case http.StatusBadRequest, http.StatusInternalServerError:
		return err.Error()
	default:
		return errx.MessageOf(err)
	}
}
