package service

import (
	"context"

	"github.com/okian/league/internal/adapters/notify"
	"github.com/okian/league/internal/domain/types"
	"github.com/okian/league/internal/domain/workflow"
)

// StartSubmission opens a submission session for submitter in division.
// Unknown divisions are rejected before a session exists.
func (s *Service) StartSubmission(ctx context.Context, division, submitter string) (workflow.Prompt, error) {
	engine, _, err := s.components()
	if err != nil {
		return workflow.Prompt{}, err
	}
	d, err := s.division(division)
	if err != nil {
		return workflow.Prompt{}, err
	}
	return engine.Start(ctx, d.Name, submitter)
}

// Step applies one submitter interaction.
func (s *Service) Step(ctx context.Context, ev workflow.Event) (workflow.Prompt, error) {
	engine, _, err := s.components()
	if err != nil {
		return workflow.Prompt{}, err
	}
	return engine.Handle(ctx, ev)
}

// Review applies a moderator decision.
func (s *Service) Review(ctx context.Context, ev workflow.Event) (workflow.Prompt, error) {
	engine, _, err := s.components()
	if err != nil {
		return workflow.Prompt{}, err
	}
	return engine.HandleReview(ctx, ev)
}

// Submission returns the current prompt of a session owned by actor.
func (s *Service) Submission(ctx context.Context, id, actor string) (workflow.Prompt, error) {
	engine, _, err := s.components()
	if err != nil {
		return workflow.Prompt{}, err
	}
	sess, err := engine.Session(ctx, id)
	if err != nil {
		return workflow.Prompt{}, err
	}
	if sess.Submitter != actor {
		return workflow.Prompt{}, workflow.ErrNotSubmitter
	}
	return engine.Current(ctx, id)
}

// PendingReviews lists submissions waiting for a moderator, oldest first.
func (s *Service) PendingReviews(ctx context.Context) ([]types.PendingReview, error) {
	engine, _, err := s.components()
	if err != nil {
		return nil, err
	}
	list, err := engine.PendingReviews(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.PendingReview, 0, len(list))
	for _, sess := range list {
		out = append(out, types.PendingReview{
			SessionID: sess.ID,
			Division:  sess.Division,
			Submitter: sess.Submitter,
			Text:      workflow.ReviewText(sess),
		})
	}
	return out, nil
}

// Notices returns the latest notices addressed to recipient.
func (s *Service) Notices(recipient string) []notify.Notice {
	if s.notifier == nil {
		return nil
	}
	return s.notifier.Inbox(recipient)
}
