// Command cli prints the movie night store for maintenance.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"filmklub/internal/config"
	"filmklub/internal/movienight"
	"filmklub/internal/storage"
)

const usage = "usage: cli movies|history|pending"

func main() {
	config.LoadDotEnv()
	path := os.Getenv("STORAGE_PATH")
	if path == "" {
		path = "data/movienight.json"
	}

	store, err := storage.New(path, 0, zerolog.Nop())
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to open store")
	}
	if err := run(os.Args[1:], os.Stdout, store); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(args []string, out io.Writer, repo storage.Repository) error {
	if len(args) != 1 {
		return errors.New(usage)
	}
	return repo.View(func(doc *storage.Document) error {
		switch args[0] {
		case "movies":
			for _, m := range doc.Movies {
				state := "unwatched"
				if m.Watched {
					state = "watched"
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", m.MovieID, m.MovieName, state)
			}
		case "history":
			fmt.Fprintln(out, movienight.FormatHistory(doc.Nights))
		case "pending":
			for id, p := range doc.PendingEvents {
				fmt.Fprintf(out, "%s\t%s\t%s\n", id, p.MovieID, p.MovieName)
			}
		default:
			return errors.New(usage)
		}
		return nil
	})
}
