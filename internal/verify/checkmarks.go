package verify

import (
	"context"
	"errors"
	"slices"

	"sectionbot/internal/common"
	"sectionbot/internal/marks"
	"sectionbot/internal/metrics"
)

// Return the marks of the caller. A member can only ask for
// the marks of the id they were verified with
func (wf *Workflow) CheckMarks(ctx context.Context, guild Guild, req Request) (record marks.Record, err error) {

	stopwatch := common.StartStopwatch()
	defer func() {
		wf.recorder.RecordDuration(metrics.WorkflowMarks, stopwatch.Stop())
		wf.recorder.RecordMarksLookup(outcome(err))
	}()
	logger := loggerFrom(ctx).With().Str("guild", guild.Id()).Str("member", req.Caller.Id).Logger()

	if !wf.allowed(req.Caller.Id) {
		return marks.Record{}, guard(RateLimited)
	}

	roles, err := guild.Roles(ctx)
	if err != nil {
		return marks.Record{}, wrapAction("list roles", err)
	}
	held := heldRoleNames(roles, req.Caller)

	verified := slices.ContainsFunc(held, wf.directory.HasRole)
	if !verified {
		logger.Info().Msg("Member asking for marks is not verified")
		return marks.Record{}, guard(NotVerified)
	}

	identity, ok := wf.directory.Lookup(req.Id)
	if !ok || !slices.Contains(held, identity.Role) {
		logger.Info().Msgf("Member asked for marks of id %s, which is not theirs", req.Id)
		return marks.Record{}, guard(IdMismatch)
	}

	if wf.options.Marks == nil {
		logger.Warn().Msg("Marks requested but no marks file is configured")
		return marks.Record{}, guard(RecordNotFound)
	}

	record, err = marks.Find(ctx, wf.options.Marks, req.Id)
	if errors.Is(err, marks.ErrRecordNotFound) {
		return marks.Record{}, guard(RecordNotFound)
	}
	if err != nil {
		return marks.Record{}, err
	}
	logger.Info().Msgf("Sending marks for id %s", req.Id)
	return record, nil
}
