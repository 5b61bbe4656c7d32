package access

import (
	"context"
	"errors"
	"fmt"

	companystore "github.com/dalemusser/crmhub/internal/app/store/companies"
	joinrequeststore "github.com/dalemusser/crmhub/internal/app/store/joinrequests"
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// JoinAction is the decision on a pending join request.
type JoinAction string

const (
	JoinApprove JoinAction = "approve"
	JoinReject  JoinAction = "reject"
)

// ParseJoinAction accepts "approve" or "reject".
func ParseJoinAction(s string) (JoinAction, error) {
	switch JoinAction(s) {
	case JoinApprove, JoinReject:
		return JoinAction(s), nil
	}
	return "", apperr.Newf(apperr.InvalidInput, "action must be approve or reject")
}

// PendingRequest is a pending join request with the requester's details.
type PendingRequest struct {
	models.JoinRequest
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// RequestJoin asks for membership of companyID with the given role. An
// existing pending request for the same pair is returned unchanged; created
// reports whether a new one was written.
func (s *Service) RequestJoin(ctx context.Context, u *models.User, companyID primitive.ObjectID, role models.Role) (jr models.JoinRequest, created bool, err error) {
	if u == nil {
		return models.JoinRequest{}, false, apperr.New(apperr.Unauthenticated)
	}
	if !role.Valid() {
		return models.JoinRequest{}, false, apperr.Newf(apperr.InvalidInput, "role must be one of company_admin, manager, employee, client")
	}

	co, err := s.companies.GetByID(ctx, companyID)
	if errors.Is(err, companystore.ErrNotFound) || (err == nil && !co.IsActive) {
		return models.JoinRequest{}, false, apperr.Newf(apperr.NotFound, "company not found")
	}
	if err != nil {
		return models.JoinRequest{}, false, apperr.Wrap(apperr.Internal, fmt.Errorf("load company: %w", err))
	}

	if u.ActiveMembership(companyID) >= 0 {
		return models.JoinRequest{}, false, apperr.New(apperr.AlreadyMember)
	}

	existing, err := s.joins.FindPending(ctx, companyID, u.ID)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, joinrequeststore.ErrNotFound):
		return models.JoinRequest{}, false, apperr.Wrap(apperr.Internal, err)
	}

	jr, err = s.joins.Create(ctx, u.ID, companyID, role)
	if errors.Is(err, joinrequeststore.ErrDuplicate) {
		// A concurrent request for the same pair won the unique index.
		existing, err := s.joins.FindPending(ctx, companyID, u.ID)
		if err != nil {
			return models.JoinRequest{}, false, apperr.Wrap(apperr.Internal, err)
		}
		return existing, false, nil
	}
	if err != nil {
		return models.JoinRequest{}, false, apperr.Wrap(apperr.Internal, err)
	}

	s.audit.JoinRequested(ctx, u.ID, companyID, string(role))
	s.log.Info("join requested",
		zap.String("user_id", u.ID.Hex()),
		zap.String("company_id", companyID.Hex()),
		zap.String("role", string(role)))
	return jr, true, nil
}

// MyJoinRequests lists the caller's own requests, newest first.
func (s *Service) MyJoinRequests(ctx context.Context, u *models.User) ([]models.JoinRequest, error) {
	out, err := s.joins.ListByUser(ctx, u.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err)
	}
	return out, nil
}

// ListPendingJoinRequests returns the pending requests for the actor's
// company, oldest first. Company admins only.
func (s *Service) ListPendingJoinRequests(ctx context.Context, actor CallerContext) ([]PendingRequest, error) {
	if err := requireAdmin(actor); err != nil {
		s.Denied(ctx, actor.User, actor.CompanyID, err, "list_join_requests")
		return nil, err
	}
	reqs, err := s.joins.ListPending(ctx, actor.CompanyID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err)
	}
	out := make([]PendingRequest, 0, len(reqs))
	for _, jr := range reqs {
		pr := PendingRequest{JoinRequest: jr}
		if u, err := s.users.GetByID(ctx, jr.UserID); err == nil {
			pr.Email = u.Email
			pr.DisplayName = u.DisplayName
		}
		out = append(out, pr)
	}
	return out, nil
}

// HandleJoinRequest approves or rejects targetID's pending request to join
// the actor's company. Exactly one concurrent caller wins the transition;
// the others get RequestAlreadyHandled.
func (s *Service) HandleJoinRequest(ctx context.Context, actor CallerContext, targetID primitive.ObjectID, action JoinAction) (models.JoinRequest, error) {
	const op = "handle_join_request"
	if err := requireAdmin(actor); err != nil {
		s.Denied(ctx, actor.User, actor.CompanyID, err, op)
		return models.JoinRequest{}, err
	}
	if action != JoinApprove && action != JoinReject {
		return models.JoinRequest{}, apperr.Newf(apperr.InvalidInput, "action must be approve or reject")
	}

	pending, err := s.joins.FindPending(ctx, actor.CompanyID, targetID)
	if errors.Is(err, joinrequeststore.ErrNotFound) {
		return models.JoinRequest{}, s.noPending(ctx, actor.CompanyID, targetID)
	}
	if err != nil {
		return models.JoinRequest{}, apperr.Wrap(apperr.Internal, err)
	}

	to := models.JoinRejected
	if action == JoinApprove {
		to = models.JoinApproved
	}

	var handled models.JoinRequest
	transitioned := false
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		jr, err := s.joins.Transition(ctx, pending.ID, to, actor.UserID())
		if err != nil {
			return err
		}
		handled, transitioned = jr, true
		if to != models.JoinApproved {
			return nil
		}
		_, err = s.updateUser(ctx, targetID, func(u *models.User) error {
			if u.ActiveMembership(actor.CompanyID) >= 0 {
				return errNoChange
			}
			u.Companies = append(u.Companies, models.Membership{
				CompanyID: actor.CompanyID,
				Role:      jr.RequestedRole,
				IsActive:  true,
				JoinedAt:  s.now(),
			})
			return nil
		})
		return err
	})
	if err != nil {
		if errors.Is(err, joinrequeststore.ErrNotPending) {
			return models.JoinRequest{}, apperr.New(apperr.RequestAlreadyHandled)
		}
		if transitioned {
			// Without a transaction the transition is already durable; put the
			// request back so it can be handled again.
			if rerr := s.joins.Reopen(context.WithoutCancel(ctx), pending.ID, actor.UserID()); rerr != nil {
				s.log.Error("reopen join request after failed approval",
					zap.String("join_request_id", pending.ID.Hex()), zap.Error(rerr))
			}
		}
		return models.JoinRequest{}, classify(err)
	}

	s.metrics.JoinTransition(string(to))
	s.audit.JoinHandled(ctx, actor.UserID(), targetID, actor.CompanyID, to == models.JoinApproved, string(handled.RequestedRole))
	s.log.Info("join request handled",
		zap.String("actor_id", actor.UserID().Hex()),
		zap.String("user_id", targetID.Hex()),
		zap.String("company_id", actor.CompanyID.Hex()),
		zap.String("status", string(to)))
	return handled, nil
}

// noPending distinguishes "already handled" from "never asked".
func (s *Service) noPending(ctx context.Context, companyID, userID primitive.ObjectID) error {
	_, err := s.joins.FindLatest(ctx, companyID, userID)
	switch {
	case err == nil:
		return apperr.New(apperr.RequestAlreadyHandled)
	case errors.Is(err, joinrequeststore.ErrNotFound):
		return apperr.Newf(apperr.NotFound, "no join request from that user")
	default:
		return apperr.Wrap(apperr.Internal, err)
	}
}
