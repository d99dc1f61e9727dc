// Package all registers every bot command.
package all

import (
	"filmklub/internal/command"
	"filmklub/internal/command/core"
	mncmd "filmklub/internal/command/movienight"
	"filmklub/internal/command/nick"
	sbcmd "filmklub/internal/command/soundboard"
	mn "filmklub/internal/movienight"
	sb "filmklub/internal/soundboard"
	"filmklub/pkg/cmd"
)

// Deps are the collaborators the commands run against. Zero values are
// enough to build definitions, e.g. for docs.
type Deps struct {
	AppName    string
	Controller *mn.Controller
	Library    *sb.Library
	Entrances  *sb.Entrances
	Player     sbcmd.Player
	Voice      sbcmd.VoiceLocator
	Members    nick.Members
}

func Register(reg *cmd.Registry, d Deps, mws ...cmd.Middleware) error {
	for _, c := range []command.DiscordCommand{
		&core.HelpCommand{Registry: reg, AppName: d.AppName},
		&mncmd.MovieNightCommand{Controller: d.Controller},
		&sbcmd.SoundboardCommand{Library: d.Library, Entrances: d.Entrances, Player: d.Player, Voice: d.Voice},
		&nick.NickCommand{Members: d.Members},
		&nick.NickMenuCommand{},
	} {
		if err := command.Register(reg, c, mws...); err != nil {
			return err
		}
	}
	return nil
}
