package movienight

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"filmklub/internal/catalog"
	"filmklub/internal/command"
	mn "filmklub/internal/movienight"
)

type MovieNightCommand struct {
	Controller *mn.Controller
}

func (c *MovieNightCommand) Name() string             { return "movienight" }
func (c *MovieNightCommand) Description() string      { return "Movie Night commands" }
func (c *MovieNightCommand) Group() string            { return "movienight" }
func (c *MovieNightCommand) Category() string         { return "🎬 Movie Night" }
func (c *MovieNightCommand) UserPermissions() []int64 { return []int64{} }

func (c *MovieNightCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "vote",
				Description: "Create a poll to vote on which movie to watch",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "start",
				Description: "Starts the movie night",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "suggest",
				Description: "Add a movie to the movie night suggestion list",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "imdb_url",
						Description: "The IMDB URL of the movie",
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "movie_name",
						Description: "Search by movie name",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "history",
				Description: "Show last watched movies and our ratings",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "rate",
				Description: "Create a rating poll for the most recent night that has no rating yet",
			},
		},
	}
}

func (c *MovieNightCommand) Run(ctx context.Context, ic any) error {
	sc, ok := ic.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	e := sc.Event
	sub, opts := command.Options(e.ApplicationCommandData())

	switch sub {
	case "vote":
		if err := sc.Reply.Defer(true); err != nil {
			return err
		}
		_, movies, err := c.Controller.OpenVote(ctx, e.ChannelID)
		if err != nil {
			return err
		}
		return sc.Reply.Respond(command.Ephemeral(fmt.Sprintf("Vote started with %d movies.", len(movies))))

	case "start":
		if err := sc.Reply.Defer(true); err != nil {
			return err
		}
		s, err := c.Controller.Start(ctx, e.GuildID, e.ChannelID)
		if err != nil {
			return err
		}
		return sc.Reply.Respond(command.Ephemeral(scheduledText(s)))

	case "suggest":
		req := mn.SuggestRequest{
			IMDbURL: command.StringOption(opts, "imdb_url"),
			Query:   command.StringOption(opts, "movie_name"),
			UserID:  command.User(e).ID,
		}
		if err := sc.Reply.Defer(false); err != nil {
			return err
		}
		title, err := c.Controller.Suggest(ctx, req)
		if err != nil {
			return err
		}
		return sc.Reply.Respond(command.Embed("New movie suggested:", SuggestionEmbed(title, req.IMDbURL)))

	case "history":
		nights, err := c.Controller.History(ctx)
		if err != nil {
			return err
		}
		return sc.Reply.Respond(command.EmbedEphemeral(&discordgo.MessageEmbed{
			Title:       "Movie Night history",
			Description: mn.FormatHistory(nights),
		}))

	case "rate":
		if err := sc.Reply.Defer(true); err != nil {
			return err
		}
		night, err := c.Controller.RequestRating(ctx, e.ChannelID)
		if err != nil {
			return err
		}
		return sc.Reply.Respond(command.Ephemeral(fmt.Sprintf("Rating poll created for **%s**.", night.MovieName)))
	}

	return sc.Reply.Respond(command.Ephemeral("Unknown subcommand."))
}

// SuggestionEmbed is the public confirmation of a suggestion. link overrides
// the catalog URL when the user supplied one.
func SuggestionEmbed(t *catalog.Title, link string) *discordgo.MessageEmbed {
	if link == "" {
		link = t.URL()
	}
	embed := &discordgo.MessageEmbed{
		Title:       t.PrimaryTitle,
		Description: mn.TruncatePlot(t.Plot),
		URL:         link,
		Footer:      &discordgo.MessageEmbedFooter{Text: "IMDB Rating: " + t.RatingText()},
	}
	if poster := t.PosterURL(); poster != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: poster}
	}
	return embed
}

func scheduledText(s *mn.Scheduled) string {
	return fmt.Sprintf("Movie night scheduled: **%s** <t:%d:F>", s.Title.PrimaryTitle, s.Start.Unix())
}
