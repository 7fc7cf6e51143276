package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sectionbot/internal/common"
	"sectionbot/internal/verify"
)

// Discord did not accept the token
var ErrAuthentication = errors.New("discord rejected the credentials")

// Time given to each interaction to finish its calls to discord
const interactionTimeout = 30 * time.Second

type Bot struct {
	token     string
	prefix    string
	workflow  *verify.Workflow
	retractor *common.DelayedExecutor
	ctx       context.Context
}

func NewBot(token string, prefix string, retractDelay time.Duration, workflow *verify.Workflow) (*Bot, error) {

	if token == "" {
		return nil, errors.New("no discord token provided")
	}

	var bot Bot

	bot.token = token
	bot.prefix = prefix
	bot.workflow = workflow
	// Messages that are retracted after some time
	bot.retractor = common.NewDelayedExecutor(retractDelay)
	bot.ctx = context.Background()

	return &bot, nil
}

// Connect to discord and serve events until the context is done
func (bot *Bot) Run(ctx context.Context) error {
	bot.ctx = ctx

	// Create session
	discord, err := discordgo.New("Bot " + bot.token)
	if err != nil {
		return fmt.Errorf("could not create discord session: %w", err)
	}
	discord.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent

	// Check the credentials before opening the gateway
	if _, err := discord.User("@me", discordgo.WithContext(ctx)); err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: invalid token", ErrAuthentication)
		}
		return fmt.Errorf("could not reach discord: %w", err)
	}

	// Event handlers
	discord.AddHandler(bot.Ready)
	discord.AddHandler(bot.Connect)
	discord.AddHandler(bot.Disconnect)
	discord.AddHandler(bot.Receive)
	discord.AddHandler(bot.Interaction)
	discord.AddHandler(bot.MemberUpdate)

	// Open session
	if err := discord.Open(); err != nil {
		return fmt.Errorf("%w: could not open the gateway (are the privileged intents enabled?): %v", ErrAuthentication, err)
	}
	defer func() {
		if err := discord.Close(); err != nil {
			log.Warn().Err(err).Msg("Could not close discord session")
		}
	}()

	// keep bot running until the context is cancelled (ctrl + C)
	log.Info().Msg("Bot running, waiting for events")
	<-ctx.Done()

	cancelled := bot.retractor.Stop()
	log.Info().Msgf("Shutting down, %d pending retractions cancelled", cancelled)
	return nil
}

func (bot *Bot) Ready(discord *discordgo.Session, ready *discordgo.Ready) {
	log.Info().Msgf("Logged in as %s (ID: %s)", ready.User.Username, ready.User.ID)
	log.Info().Msgf("Connected to %d guilds", len(ready.Guilds))
	for _, guild := range ready.Guilds {
		log.Info().Str("guild", guild.ID).Msgf("- %s", guild.Name)
	}
}

func (bot *Bot) Connect(discord *discordgo.Session, connect *discordgo.Connect) {
	log.Info().Msg("Bot connected to Discord!")
}

func (bot *Bot) Disconnect(discord *discordgo.Session, disconnect *discordgo.Disconnect) {
	log.Warn().Msg("Bot disconnected from Discord!")
}

func (bot *Bot) Receive(discord *discordgo.Session, message *discordgo.MessageCreate) {

	// Reject my own messages
	if message.Author == nil || message.Author.ID == discord.State.User.ID || message.Author.Bot {
		return
	}

	// Parse the input provided and call the appropriate function
	parseResult := Parse(bot.prefix, message.Content)
	if parseResult.parseid == PARSEID_NO_BOT_PREFIX {
		return
	}

	ctx, cancel, logger := bot.interactionContext(message.GuildID, message.Author.ID)
	defer cancel()
	defer bot.recoverPanic(logger, func() {
		bot.sendRejection(discord, message.Message, GenericError())
	})
	logger.Debug().Msgf("Received message: %s", message.Content)

	// Ignore messages from private channels
	if message.GuildID == "" {
		logger.Debug().Msg("Ignoring private message")
		bot.sendResponses(discord, message.ChannelID, ServerOnly())
		return
	}

	switch parseResult.parseid {
	case PARSEID_OK:
		logger.Info().Msgf("Command understood: %s", message.Content)
		switch parseResult.command {
		case COMMAND_VERIFY:
			switch arguments := parseResult.arguments.(type) {
			default:
				panic(fmt.Sprintf("unexpected type of verify arguments %T", arguments))
			case VerifyArguments:
				bot.verifyCommand(ctx, discord, message, arguments)
			}
		case COMMAND_MARKS:
			switch id := parseResult.arguments.(type) {
			default:
				panic(fmt.Sprintf("unexpected type of id %T", id))
			case string:
				bot.marksCommand(ctx, discord, message, id)
			}
		case COMMAND_SETUP:
			bot.setupCommand(discord, message)
		case COMMAND_HELP:
			bot.sendResponses(discord, message.ChannelID, HelpMessage(bot.prefix))
		default:
			panic(fmt.Sprintf("Command %d is not one of the possible ones", parseResult.command))
		}
	default:
		// The command is invalid input, so it contains an error message
		logger.Info().Msgf("Wrong input: '%s'. Reason: %s", message.Content, parseResult.errorMessage)
		bot.sendRejection(discord, message.Message, InputNotValid(parseResult.errorMessage))
	}
}

func (bot *Bot) verifyCommand(ctx context.Context, discord *discordgo.Session, message *discordgo.MessageCreate, arguments VerifyArguments) {

	logger := zerolog.Ctx(ctx)
	guild := NewDiscordGuild(discord, message.GuildID)

	// Verifying someone else requires being an administrator
	callerId := message.Author.ID
	origin := message.ChannelID
	partial := message.Member
	if arguments.MemberId != "" {
		if !bot.isAdministrator(discord, message.Author.ID, message.ChannelID) {
			bot.sendRejection(discord, message.Message, AdministratorsOnly(bot.prefix+"verify <@member> <id>"))
			return
		}
		callerId = arguments.MemberId
		// The administrator keeps seeing the channel, and so does the member
		origin = ""
		partial = nil
	}

	caller, err := bot.member(ctx, discord, message.GuildID, callerId, partial)
	if err != nil {
		logger.Warn().Err(err).Msgf("Could not fetch member %s", callerId)
		bot.sendRejection(discord, message.Message, MemberNotFound(callerId))
		return
	}

	assignment, err := bot.workflow.Verify(ctx, guild, verify.Request{Caller: caller, Id: arguments.Id, OriginChannelId: origin})
	if err != nil {
		bot.logWorkflowError(logger, "verify", err)
		if arguments.MemberId != "" {
			bot.sendRejection(discord, message.Message, MemberRejection(err, arguments.Id, callerId))
		} else {
			bot.sendRejection(discord, message.Message, Rejection(err, arguments.Id))
		}
		return
	}

	if arguments.MemberId != "" {
		bot.sendResponses(discord, message.ChannelID, MemberVerified(callerId, assignment))
	} else {
		bot.sendResponses(discord, message.ChannelID, VerificationSucceeded(assignment))
	}
	// The message contains the id, no need to keep it around
	bot.retract(discord, message.ChannelID, message.ID)
}

func (bot *Bot) marksCommand(ctx context.Context, discord *discordgo.Session, message *discordgo.MessageCreate, id string) {

	logger := zerolog.Ctx(ctx)
	guild := NewDiscordGuild(discord, message.GuildID)

	caller, err := bot.member(ctx, discord, message.GuildID, message.Author.ID, message.Member)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not fetch the author of the message")
		bot.sendRejection(discord, message.Message, GenericError())
		return
	}

	record, err := bot.workflow.CheckMarks(ctx, guild, verify.Request{Caller: caller, Id: id})
	if err != nil {
		bot.logWorkflowError(logger, "marks", err)
		bot.sendRejection(discord, message.Message, Rejection(err, id))
		return
	}

	// Marks are private, send them in a direct message
	dm, err := discord.UserChannelCreate(message.Author.ID, discordgo.WithContext(ctx))
	if err == nil {
		_, err = MarksMessage(record).Send(dm.ID, discord)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Could not send marks in a direct message")
		bot.sendRejection(discord, message.Message, CouldNotSendPrivately())
		return
	}
	bot.sendRejection(discord, message.Message, MarksSentPrivately())
}

func (bot *Bot) setupCommand(discord *discordgo.Session, message *discordgo.MessageCreate) {
	if !bot.isAdministrator(discord, message.Author.ID, message.ChannelID) {
		bot.sendRejection(discord, message.Message, AdministratorsOnly(bot.prefix+"setup_verification"))
		return
	}
	bot.sendResponses(discord, message.ChannelID, VerificationPanel())
}

// Build the member from the partial member received with the event, or fetch it
func (bot *Bot) member(ctx context.Context, discord *discordgo.Session, guildid string, userid string, partial *discordgo.Member) (verify.Member, error) {
	if partial != nil {
		track(discord, guildid, &discordgo.Member{User: &discordgo.User{ID: userid}, Roles: partial.Roles})
		return verify.Member{Id: userid, RoleIds: partial.Roles}, nil
	}
	member, err := discord.GuildMember(guildid, userid, discordgo.WithContext(ctx))
	if err != nil {
		return verify.Member{}, err
	}
	track(discord, guildid, member)
	return memberFrom(member), nil
}

func (bot *Bot) isAdministrator(discord *discordgo.Session, userid string, channelid string) bool {
	permissions, err := discord.UserChannelPermissions(userid, channelid)
	if err != nil {
		log.Warn().Err(err).Msgf("Could not compute permissions of user %s", userid)
		return false
	}
	return permissions&discordgo.PermissionAdministrator != 0
}

func (bot *Bot) sendResponses(discord *discordgo.Session, channelId string, responses ...Response) []*discordgo.Message {
	sent := []*discordgo.Message{}
	for _, response := range responses {
		message, err := response.Send(channelId, discord)
		if err != nil {
			log.Error().Err(err).Msgf("Could not send message to channel %s", channelId)
			continue
		}
		sent = append(sent, message)
	}
	return sent
}

// Send a message that is deleted after a while, together with
// the message that caused it
func (bot *Bot) sendRejection(discord *discordgo.Session, cause *discordgo.Message, response Response) {
	for _, sent := range bot.sendResponses(discord, cause.ChannelID, response) {
		bot.retract(discord, sent.ChannelID, sent.ID)
	}
	bot.retract(discord, cause.ChannelID, cause.ID)
}

func (bot *Bot) retract(discord *discordgo.Session, channelId string, messageId string) {
	bot.retractor.Schedule("delete message "+messageId, func() error {
		return discord.ChannelMessageDelete(channelId, messageId)
	})
}

// Each event gets its own context with a timeout and a logger
// identifying the request
func (bot *Bot) interactionContext(guildid string, userid string) (context.Context, context.CancelFunc, *zerolog.Logger) {
	logger := log.With().
		Str("request", uuid.NewString()).
		Str("guild", guildid).
		Str("user", userid).
		Logger()
	ctx, cancel := context.WithTimeout(bot.ctx, interactionTimeout)
	return logger.WithContext(ctx), cancel, &logger
}

func (bot *Bot) logWorkflowError(logger *zerolog.Logger, workflow string, err error) {
	var guardErr *verify.GuardError
	var permErr *verify.PermissionError
	switch {
	case errors.As(err, &guardErr):
		logger.Info().Str("reason", string(guardErr.Reason)).Msgf("%s rejected", workflow)
	case errors.As(err, &permErr):
		logger.Warn().Err(err).Msgf("%s failed for lack of permissions", workflow)
	default:
		logger.Error().Err(err).Msgf("%s failed", workflow)
	}
}

// Last resort: never let a handler take the bot down
func (bot *Bot) recoverPanic(logger *zerolog.Logger, notify func()) {
	if r := recover(); r != nil {
		logger.Error().Str("stack", string(debug.Stack())).Msgf("Unexpected error: %v", r)
		if notify != nil {
			notify()
		}
	}
}
