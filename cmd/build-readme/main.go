package main

import (
	"github.com/rs/zerolog/log"

	"filmklub/internal/command/all"
	"filmklub/internal/config"
	"filmklub/internal/docs"
	"filmklub/pkg/cmd"
)

func main() {
	reg := cmd.NewRegistry()
	if err := all.Register(reg, all.Deps{AppName: "filmklub"}); err != nil {
		log.Fatal().Err(err).Msg("Failed to register commands")
	}
	if err := docs.UpdateReadme(reg, config.CategoryWeights, "filmklub", "README.md.tmpl", "README.md"); err != nil {
		log.Fatal().Err(err).Msg("Failed to update README")
	}
	log.Info().Msg("README.md updated with current commands")
}
