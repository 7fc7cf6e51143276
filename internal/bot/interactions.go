package bot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"sectionbot/internal/verify"
)

// Handle clicks on the panel buttons and the submission of the modals they open
func (bot *Bot) Interaction(discord *discordgo.Session, interaction *discordgo.InteractionCreate) {

	userid := ""
	if interaction.Member != nil && interaction.Member.User != nil {
		userid = interaction.Member.User.ID
	} else if interaction.User != nil {
		userid = interaction.User.ID
	}

	ctx, cancel, logger := bot.interactionContext(interaction.GuildID, userid)
	defer cancel()
	defer bot.recoverPanic(logger, func() {
		bot.respond(discord, interaction, logger, GenericError())
	})

	if interaction.GuildID == "" || interaction.Member == nil {
		bot.respond(discord, interaction, logger, ServerOnly())
		return
	}

	switch interaction.Type {
	case discordgo.InteractionMessageComponent:
		customId := interaction.MessageComponentData().CustomID
		logger.Debug().Msgf("Button %s clicked", customId)
		switch customId {
		case verifyButtonId:
			bot.openModal(discord, interaction, logger, IdModal(verifyModalId, "Verification"))
		case marksButtonId:
			bot.openModal(discord, interaction, logger, IdModal(marksModalId, "Check Marks"))
		default:
			logger.Debug().Msgf("Ignoring unknown component %s", customId)
		}
	case discordgo.InteractionModalSubmit:
		data := interaction.ModalSubmitData()
		id := strings.TrimSpace(textInputValue(data.Components, idInputId))
		track(discord, interaction.GuildID, interaction.Member)
		caller := memberFrom(interaction.Member)
		request := verify.Request{Caller: caller, Id: id, OriginChannelId: interaction.ChannelID}
		switch data.CustomID {
		case verifyModalId:
			bot.respond(discord, interaction, logger, bot.verifyInteraction(ctx, discord, interaction.GuildID, request))
		case marksModalId:
			bot.respond(discord, interaction, logger, bot.marksInteraction(ctx, discord, interaction.GuildID, request))
		default:
			logger.Debug().Msgf("Ignoring unknown modal %s", data.CustomID)
		}
	}
}

func (bot *Bot) verifyInteraction(ctx context.Context, discord *discordgo.Session, guildid string, request verify.Request) Response {
	assignment, err := bot.workflow.Verify(ctx, NewDiscordGuild(discord, guildid), request)
	if err != nil {
		bot.logWorkflowError(zerolog.Ctx(ctx), "verify", err)
		return Rejection(err, request.Id)
	}
	return VerificationSucceeded(assignment)
}

func (bot *Bot) marksInteraction(ctx context.Context, discord *discordgo.Session, guildid string, request verify.Request) Response {
	record, err := bot.workflow.CheckMarks(ctx, NewDiscordGuild(discord, guildid), request)
	if err != nil {
		bot.logWorkflowError(zerolog.Ctx(ctx), "marks", err)
		return Rejection(err, request.Id)
	}
	return MarksMessage(record)
}

func (bot *Bot) openModal(discord *discordgo.Session, interaction *discordgo.InteractionCreate, logger *zerolog.Logger, modal *discordgo.InteractionResponse) {
	if err := discord.InteractionRespond(interaction.Interaction, modal); err != nil {
		logger.Error().Err(err).Msg("Could not open modal")
		bot.respond(discord, interaction, logger, GenericError())
	}
}

func (bot *Bot) respond(discord *discordgo.Session, interaction *discordgo.InteractionCreate, logger *zerolog.Logger, response Response) {
	if err := respondEphemeral(discord, interaction.Interaction, response); err != nil {
		// Most likely the interaction was already answered
		logger.Debug().Err(err).Msg("Could not respond to interaction")
	}
}

// Find the value of a text input among the rows of a submitted modal
func textInputValue(components []discordgo.MessageComponent, customId string) string {
	for _, component := range components {
		switch c := component.(type) {
		case *discordgo.ActionsRow:
			if value := textInputValue(c.Components, customId); value != "" {
				return value
			}
		case discordgo.ActionsRow:
			if value := textInputValue(c.Components, customId); value != "" {
				return value
			}
		case *discordgo.TextInput:
			if c.CustomID == customId {
				return c.Value
			}
		case discordgo.TextInput:
			if c.CustomID == customId {
				return c.Value
			}
		}
	}
	return ""
}
