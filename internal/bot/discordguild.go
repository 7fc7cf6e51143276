package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"sectionbot/internal/verify"
)

// Maximum page size accepted by the list guild members endpoint
const membersPageSize = 1000

const sectionAccess = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory
const verificationAccess = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages

// A discord server seen through the operations the workflows need
type DiscordGuild struct {
	discord *discordgo.Session
	id      string
}

func NewDiscordGuild(discord *discordgo.Session, guildid string) *DiscordGuild {
	return &DiscordGuild{discord: discord, id: guildid}
}

func (guild *DiscordGuild) Id() string {
	return guild.id
}

func (guild *DiscordGuild) Roles(ctx context.Context) ([]verify.Role, error) {
	roles, err := guild.discord.GuildRoles(guild.id, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translateError(err)
	}
	result := make([]verify.Role, 0, len(roles))
	for _, role := range roles {
		result = append(result, verify.Role{Id: role.ID, Name: role.Name})
	}
	return result, nil
}

func (guild *DiscordGuild) CreateRole(ctx context.Context, name string) (verify.Role, error) {
	role, err := guild.discord.GuildRoleCreate(guild.id, &discordgo.RoleParams{Name: name}, discordgo.WithContext(ctx))
	if err != nil {
		return verify.Role{}, translateError(err)
	}
	return verify.Role{Id: role.ID, Name: role.Name}, nil
}

func (guild *DiscordGuild) AddMemberRole(ctx context.Context, memberId string, roleId string) error {
	return translateError(guild.discord.GuildMemberRoleAdd(guild.id, memberId, roleId, discordgo.WithContext(ctx)))
}

func (guild *DiscordGuild) Members(ctx context.Context) ([]verify.Member, error) {
	result := []verify.Member{}
	after := ""
	for {
		members, err := guild.discord.GuildMembers(guild.id, after, membersPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, translateError(err)
		}
		for _, member := range members {
			result = append(result, memberFrom(member))
		}
		if len(members) < membersPageSize {
			return result, nil
		}
		after = members[len(members)-1].User.ID
	}
}

func (guild *DiscordGuild) Channels(ctx context.Context) ([]verify.Channel, error) {
	channels, err := guild.discord.GuildChannels(guild.id, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translateError(err)
	}
	result := make([]verify.Channel, 0, len(channels))
	for _, ch := range channels {
		result = append(result, verify.Channel{Id: ch.ID, Name: ch.Name})
	}
	return result, nil
}

func (guild *DiscordGuild) CreateRestrictedChannel(ctx context.Context, name string, roleId string) (verify.Channel, error) {
	data := discordgo.GuildChannelCreateData{
		Name: name,
		Type: discordgo.ChannelTypeGuildText,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			// The everyone role has the same id as the guild
			{ID: guild.id, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
			{ID: roleId, Type: discordgo.PermissionOverwriteTypeRole, Allow: sectionAccess},
		},
	}
	ch, err := guild.discord.GuildChannelCreateComplex(guild.id, data, discordgo.WithContext(ctx))
	if err != nil {
		return verify.Channel{}, translateError(err)
	}
	return verify.Channel{Id: ch.ID, Name: ch.Name}, nil
}

func (guild *DiscordGuild) SetChannelAccess(ctx context.Context, channelId string, memberId string, allow bool) error {
	var allowed, denied int64
	if allow {
		allowed = verificationAccess
	} else {
		denied = verificationAccess
	}
	err := guild.discord.ChannelPermissionSet(channelId, memberId, discordgo.PermissionOverwriteTypeMember, allowed, denied, discordgo.WithContext(ctx))
	return translateError(err)
}

func memberFrom(member *discordgo.Member) verify.Member {
	result := verify.Member{RoleIds: append([]string{}, member.Roles...)}
	if member.User != nil {
		result.Id = member.User.ID
	}
	return result
}

// Make forbidden answers recognisable by the workflows
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", verify.ErrForbidden, err)
	}
	return err
}
