package main

import (
	"audio-service/cmd"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := cmd.Root().Execute(); err != nil {
		log.Fatal().Err(err).Send()
	}
}
