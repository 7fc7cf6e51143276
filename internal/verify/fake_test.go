package verify

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type overwrite struct {
	channelId string
	targetId  string
	allow     bool
}

type fakeChannel struct {
	Channel
	restrictedTo string
}

// In-memory guild recording every mutation
type fakeGuild struct {
	mutex       sync.Mutex
	id          string
	roles       []Role
	channels    []fakeChannel
	members     map[string]*Member
	overwrites  []overwrite
	mutations   int
	nextId      int
	createDelay time.Duration
	forbidden   map[string]bool
}

func newFakeGuild() *fakeGuild {
	return &fakeGuild{
		id:        "guild",
		members:   map[string]*Member{},
		forbidden: map[string]bool{},
	}
}

func (g *fakeGuild) newId(prefix string) string {
	g.nextId++
	return fmt.Sprintf("%s-%d", prefix, g.nextId)
}

func (g *fakeGuild) addRole(name string) Role {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	role := Role{Id: g.newId("role"), Name: name}
	g.roles = append(g.roles, role)
	return role
}

func (g *fakeGuild) addChannel(id string, name string) Channel {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	channel := Channel{Id: id, Name: name}
	g.channels = append(g.channels, fakeChannel{Channel: channel})
	return channel
}

func (g *fakeGuild) overwritesCopy() []overwrite {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return append([]overwrite{}, g.overwrites...)
}

func (g *fakeGuild) removeMemberRole(memberId string, roleId string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	member := g.members[memberId]
	kept := []string{}
	for _, id := range member.RoleIds {
		if id != roleId {
			kept = append(kept, id)
		}
	}
	member.RoleIds = kept
}

func (g *fakeGuild) addMember(id string, roleIds ...string) Member {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.members[id] = &Member{Id: id, RoleIds: roleIds}
	return *g.members[id]
}

func (g *fakeGuild) member(id string) Member {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	member := g.members[id]
	return Member{Id: member.Id, RoleIds: append([]string{}, member.RoleIds...)}
}

func (g *fakeGuild) roleNamed(name string) (Role, bool) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return findRole(g.roles, name)
}

func (g *fakeGuild) channelNamed(name string) (fakeChannel, bool) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	for _, channel := range g.channels {
		if channel.Name == name {
			return channel, true
		}
	}
	return fakeChannel{}, false
}

func (g *fakeGuild) mutationCount() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.mutations
}

func (g *fakeGuild) check(action string) error {
	if g.forbidden[action] {
		return fmt.Errorf("%s: %w", action, ErrForbidden)
	}
	return nil
}

func (g *fakeGuild) Id() string {
	return g.id
}

func (g *fakeGuild) Roles(ctx context.Context) ([]Role, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return append([]Role{}, g.roles...), nil
}

func (g *fakeGuild) CreateRole(ctx context.Context, name string) (Role, error) {
	if err := g.check("create role"); err != nil {
		return Role{}, err
	}
	time.Sleep(g.createDelay)
	if err := ctx.Err(); err != nil {
		return Role{}, err
	}
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.mutations++
	role := Role{Id: g.newId("role"), Name: name}
	g.roles = append(g.roles, role)
	return role, nil
}

func (g *fakeGuild) AddMemberRole(ctx context.Context, memberId string, roleId string) error {
	if err := g.check("add role"); err != nil {
		return err
	}
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.mutations++
	member, ok := g.members[memberId]
	if !ok {
		return fmt.Errorf("unknown member %s", memberId)
	}
	if !member.HasRole(roleId) {
		member.RoleIds = append(member.RoleIds, roleId)
	}
	return nil
}

func (g *fakeGuild) Members(ctx context.Context) ([]Member, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	members := []Member{}
	for _, member := range g.members {
		members = append(members, *member)
	}
	return members, nil
}

func (g *fakeGuild) Channels(ctx context.Context) ([]Channel, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	channels := []Channel{}
	for _, channel := range g.channels {
		channels = append(channels, channel.Channel)
	}
	return channels, nil
}

func (g *fakeGuild) CreateRestrictedChannel(ctx context.Context, name string, roleId string) (Channel, error) {
	if err := g.check("create channel"); err != nil {
		return Channel{}, err
	}
	time.Sleep(g.createDelay)
	if err := ctx.Err(); err != nil {
		return Channel{}, err
	}
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.mutations++
	channel := Channel{Id: g.newId("channel"), Name: name}
	g.channels = append(g.channels, fakeChannel{Channel: channel, restrictedTo: roleId})
	return channel, nil
}

func (g *fakeGuild) SetChannelAccess(ctx context.Context, channelId string, memberId string, allow bool) error {
	if err := g.check("set access"); err != nil {
		return err
	}
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.mutations++
	g.overwrites = append(g.overwrites, overwrite{channelId: channelId, targetId: memberId, allow: allow})
	return nil
}
