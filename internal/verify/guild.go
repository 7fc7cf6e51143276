package verify

import (
	"context"
	"slices"
)

type Role struct {
	Id   string
	Name string
}

type Channel struct {
	Id   string
	Name string
}

type Member struct {
	Id      string
	RoleIds []string
}

func (member Member) HasRole(roleId string) bool {
	return slices.Contains(member.RoleIds, roleId)
}

// Guild is everything the workflows need from a discord server.
// Implementations return errors wrapping ErrForbidden when the
// bot does not have the rights to perform an action
type Guild interface {
	Id() string
	Roles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, name string) (Role, error)
	AddMemberRole(ctx context.Context, memberId string, roleId string) error
	Members(ctx context.Context) ([]Member, error)
	Channels(ctx context.Context) ([]Channel, error)
	// Create a text channel hidden from everyone except the provided role,
	// which can read it, write to it and see its history
	CreateRestrictedChannel(ctx context.Context, name string, roleId string) (Channel, error)
	// Allow or deny a single member to view and write to a channel
	SetChannelAccess(ctx context.Context, channelId string, memberId string, allow bool) error
}

// Names of the roles held by the member, in the order the guild lists them
func heldRoleNames(roles []Role, member Member) []string {
	names := []string{}
	for _, role := range roles {
		if member.HasRole(role.Id) {
			names = append(names, role.Name)
		}
	}
	return names
}

func findRole(roles []Role, name string) (Role, bool) {
	for _, role := range roles {
		if role.Name == name {
			return role, true
		}
	}
	return Role{}, false
}

func findChannel(channels []Channel, name string) (Channel, bool) {
	for _, channel := range channels {
		if channel.Name == name {
			return channel, true
		}
	}
	return Channel{}, false
}
