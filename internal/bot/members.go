package bot

import (
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"sectionbot/internal/verify"
)

// Give back the verification channel to members that lose their section role
func (bot *Bot) MemberUpdate(discord *discordgo.Session, update *discordgo.GuildMemberUpdate) {

	if update.Member == nil || update.User == nil {
		return
	}

	ctx, cancel, logger := bot.interactionContext(update.GuildID, update.User.ID)
	defer cancel()
	defer bot.recoverPanic(logger, nil)

	member := memberFrom(update.Member)
	var previous *verify.Member
	if update.BeforeUpdate != nil {
		before := memberFrom(update.BeforeUpdate)
		previous = &before
	}

	restored, err := bot.workflow.Restore(ctx, NewDiscordGuild(discord, update.GuildID), member, previous)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not restore access to the verification channel")
		return
	}
	if restored {
		logger.Info().Msg("Member can verify again")
	}
}

// Cache the member before the bot changes its roles, so that the update
// that follows carries the roles it had before
func track(discord *discordgo.Session, guildid string, member *discordgo.Member) {
	if discord.State == nil || !discord.StateEnabled || member.User == nil {
		return
	}
	if _, err := discord.State.Member(guildid, member.User.ID); err == nil {
		return
	}
	tracked := *member
	tracked.GuildID = guildid
	if err := discord.State.MemberAdd(&tracked); err != nil {
		log.Debug().Err(err).Msgf("Could not cache member %s", member.User.ID)
	}
}
