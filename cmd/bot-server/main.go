package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/Project-Jira-Connector/Bot-Back-End/botserver"
)

func main() {
	if err := botserver.Run(); err != nil {
		log.Error().Err(err).Msg("bot-server exited with error")
		os.Exit(1)
	}
}
