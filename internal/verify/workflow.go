package verify

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"sectionbot/internal/common"
	"sectionbot/internal/directory"
	"sectionbot/internal/marks"
	"sectionbot/internal/metrics"
)

// Time given to the creation of a role or a channel
const creationTimeout = 30 * time.Second

type Options struct {
	// Roles starting with this prefix are section roles.
	// A member can only hold one of them
	SectionPrefix string
	// Name of the channel where members verify themselves
	VerificationChannel string
	// Refuse an id whose role is already held by another member
	ClaimGuard bool
	// Hide the channel the verification came from once it succeeds
	HideVerification bool
	// Source of the marks. Nil if marks are not available
	Marks marks.Source
	// Limit on the attempts of each member. Nil if unlimited
	Limiter *common.RateLimiter
	// Nil records nothing
	Recorder metrics.Recorder
}

type Request struct {
	Caller Member
	Id     string
	// Channel where the request was made, if any
	OriginChannelId string
}

// The result of a successful verification
type Assignment struct {
	Role           string
	Channel        string
	RoleCreated    bool
	ChannelCreated bool
}

type Workflow struct {
	directory *directory.Directory
	options   Options
	recorder  metrics.Recorder
	// Serializes the creation of roles and channels with the same name
	creations singleflight.Group
}

func NewWorkflow(dir *directory.Directory, options Options) *Workflow {
	recorder := options.Recorder
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if options.SectionPrefix == "" {
		options.SectionPrefix = "Section-"
	}
	if options.VerificationChannel == "" {
		options.VerificationChannel = "verification"
	}
	return &Workflow{directory: dir, options: options, recorder: recorder}
}

func (wf *Workflow) Directory() *directory.Directory {
	return wf.directory
}

// Verify the caller with the provided id: check the guards, then make
// sure the role (and channel, if any) exist and grant the role
func (wf *Workflow) Verify(ctx context.Context, guild Guild, req Request) (assignment Assignment, err error) {

	stopwatch := common.StartStopwatch()
	defer func() {
		wf.recorder.RecordDuration(metrics.WorkflowVerify, stopwatch.Stop())
		wf.recorder.RecordVerification(outcome(err))
	}()
	logger := loggerFrom(ctx).With().Str("guild", guild.Id()).Str("member", req.Caller.Id).Logger()

	if !wf.allowed(req.Caller.Id) {
		return Assignment{}, guard(RateLimited)
	}

	roles, err := guild.Roles(ctx)
	if err != nil {
		return Assignment{}, wrapAction("list roles", err)
	}
	held := heldRoleNames(roles, req.Caller)

	// A member can only be in one section
	for _, name := range held {
		if strings.HasPrefix(name, wf.options.SectionPrefix) {
			logger.Info().Msgf("Member already holds section role %s", name)
			return Assignment{}, &GuardError{Reason: AlreadyAssigned, Role: name}
		}
	}

	record, ok := wf.directory.Lookup(req.Id)
	if !ok {
		logger.Info().Msgf("Id %s is not in the directory", req.Id)
		return Assignment{}, guard(UnknownId)
	}

	for _, name := range held {
		if name == record.Role {
			logger.Info().Msgf("Member already holds role %s", name)
			return Assignment{}, &GuardError{Reason: AlreadyAssigned, Role: name}
		}
	}

	if wf.options.ClaimGuard {
		claimed, err := wf.claimed(ctx, guild, roles, record.Role, req.Caller.Id)
		if err != nil {
			return Assignment{}, err
		}
		if claimed {
			logger.Info().Msgf("Role %s for id %s is already claimed", record.Role, req.Id)
			return Assignment{}, &GuardError{Reason: IdAlreadyClaimed, Role: record.Role}
		}
	}

	// Guards passed, from here on the guild is modified
	role, created, err := wf.resolveRole(ctx, guild, record.Role)
	if err != nil {
		return Assignment{}, err
	}
	assignment.Role = role.Name
	assignment.RoleCreated = created

	if err := guild.AddMemberRole(ctx, req.Caller.Id, role.Id); err != nil {
		return Assignment{}, wrapAction("grant role "+role.Name, err)
	}
	logger.Info().Msgf("Granted role %s for id %s", role.Name, req.Id)

	if record.HasChannel() {
		channel, created, err := wf.resolveChannel(ctx, guild, record.Channel, role)
		if err != nil {
			return assignment, err
		}
		assignment.Channel = channel.Name
		assignment.ChannelCreated = created
	}

	// Verified members do not need to see the verification channel anymore
	if wf.options.HideVerification && req.OriginChannelId != "" {
		wf.hideVerification(ctx, guild, req, &logger)
	}

	return assignment, nil
}

// Deny the caller the verification channel, only when the request came from it.
// Failures are logged, the verification already succeeded
func (wf *Workflow) hideVerification(ctx context.Context, guild Guild, req Request, logger *zerolog.Logger) {
	channels, err := guild.Channels(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not list channels to hide the verification channel")
		return
	}
	channel, ok := findChannel(channels, wf.options.VerificationChannel)
	if !ok || channel.Id != req.OriginChannelId {
		logger.Debug().Msgf("Request did not come from channel %s, nothing to hide", wf.options.VerificationChannel)
		return
	}
	if err := guild.SetChannelAccess(ctx, channel.Id, req.Caller.Id, false); err != nil {
		logger.Warn().Err(err).Msgf("Could not hide channel %s", channel.Name)
	}
}

// Restore the access to the verification channel of a member that lost
// its last section role. The previous state of the member is nil when
// unknown, and then nothing can be said to be lost. Returns whether the
// access was restored
func (wf *Workflow) Restore(ctx context.Context, guild Guild, member Member, previous *Member) (restored bool, err error) {

	stopwatch := common.StartStopwatch()
	defer func() {
		wf.recorder.RecordDuration(metrics.WorkflowRestore, stopwatch.Stop())
		wf.recorder.RecordRestore(restoreOutcome(restored, err))
	}()
	logger := loggerFrom(ctx).With().Str("guild", guild.Id()).Str("member", member.Id).Logger()

	if previous == nil {
		logger.Debug().Msg("Previous roles unknown, nothing to restore")
		return false, nil
	}

	// Only react to roles being removed
	removed := []string{}
	for _, roleId := range previous.RoleIds {
		if !member.HasRole(roleId) {
			removed = append(removed, roleId)
		}
	}
	if len(removed) == 0 {
		return false, nil
	}

	roles, err := guild.Roles(ctx)
	if err != nil {
		return false, wrapAction("list roles", err)
	}
	for _, name := range heldRoleNames(roles, member) {
		if strings.HasPrefix(name, wf.options.SectionPrefix) {
			return false, nil
		}
	}
	// A member that never held a section role has nothing to get back
	lostSection := false
	for _, name := range heldRoleNames(roles, Member{RoleIds: removed}) {
		if strings.HasPrefix(name, wf.options.SectionPrefix) {
			lostSection = true
		}
	}
	if !lostSection {
		return false, nil
	}

	channels, err := guild.Channels(ctx)
	if err != nil {
		return false, wrapAction("list channels", err)
	}
	channel, ok := findChannel(channels, wf.options.VerificationChannel)
	if !ok {
		logger.Debug().Msgf("No channel %s to restore", wf.options.VerificationChannel)
		return false, nil
	}

	if err := guild.SetChannelAccess(ctx, channel.Id, member.Id, true); err != nil {
		return false, wrapAction("restore access to "+channel.Name, err)
	}
	logger.Info().Msgf("Restored access to channel %s", channel.Name)
	return true, nil
}

func (wf *Workflow) allowed(memberId string) bool {
	return wf.options.Limiter == nil || wf.options.Limiter.Allowed(memberId)
}

// Check if another member already holds the role
func (wf *Workflow) claimed(ctx context.Context, guild Guild, roles []Role, roleName string, callerId string) (bool, error) {

	role, ok := findRole(roles, roleName)
	if !ok {
		// Nobody can hold a role that does not exist yet
		return false, nil
	}

	members, err := guild.Members(ctx)
	if err != nil {
		return false, wrapAction("list members", err)
	}
	for _, member := range members {
		if member.Id != callerId && member.HasRole(role.Id) {
			return true, nil
		}
	}
	return false, nil
}

// Callers waiting on the same creation share its result, so it cannot
// be cancelled by whichever of them started it
func creationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), creationTimeout)
}

type resolved[T any] struct {
	value   T
	created bool
}

// Find the role by name, creating it if it does not exist
func (wf *Workflow) resolveRole(ctx context.Context, guild Guild, name string) (Role, bool, error) {

	key := guild.Id() + "/role/" + name
	v, err, _ := wf.creations.Do(key, func() (interface{}, error) {
		ctx, cancel := creationContext(ctx)
		defer cancel()
		// List again: the role may have been created since the guards ran
		roles, err := guild.Roles(ctx)
		if err != nil {
			return nil, wrapAction("list roles", err)
		}
		if role, ok := findRole(roles, name); ok {
			return resolved[Role]{value: role}, nil
		}
		role, err := guild.CreateRole(ctx, name)
		if err != nil {
			return nil, wrapAction("create role "+name, err)
		}
		wf.recorder.RecordResourceCreated(metrics.KindRole)
		loggerFrom(ctx).Info().Str("guild", guild.Id()).Msgf("Created role %s", name)
		return resolved[Role]{value: role, created: true}, nil
	})
	if err != nil {
		return Role{}, false, err
	}
	result := v.(resolved[Role])
	return result.value, result.created, nil
}

// Find the channel by name, creating it restricted to the role if it does not exist
func (wf *Workflow) resolveChannel(ctx context.Context, guild Guild, name string, role Role) (Channel, bool, error) {

	key := guild.Id() + "/channel/" + name
	v, err, _ := wf.creations.Do(key, func() (interface{}, error) {
		ctx, cancel := creationContext(ctx)
		defer cancel()
		channels, err := guild.Channels(ctx)
		if err != nil {
			return nil, wrapAction("list channels", err)
		}
		if channel, ok := findChannel(channels, name); ok {
			return resolved[Channel]{value: channel}, nil
		}
		channel, err := guild.CreateRestrictedChannel(ctx, name, role.Id)
		if err != nil {
			return nil, wrapAction("create channel "+name, err)
		}
		wf.recorder.RecordResourceCreated(metrics.KindChannel)
		loggerFrom(ctx).Info().Str("guild", guild.Id()).Msgf("Created channel %s for role %s", name, role.Name)
		return resolved[Channel]{value: channel, created: true}, nil
	})
	if err != nil {
		return Channel{}, false, err
	}
	result := v.(resolved[Channel])
	return result.value, result.created, nil
}

// The logger attached to the context, or the global one
func loggerFrom(ctx context.Context) *zerolog.Logger {
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		return &log.Logger
	}
	return logger
}
