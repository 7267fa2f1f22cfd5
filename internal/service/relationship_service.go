package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/socialgraph/internal/apperr"
	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/metrics"
	"github.com/d60-Lab/socialgraph/internal/model"
	"github.com/d60-Lab/socialgraph/internal/repository"
	"github.com/d60-Lab/socialgraph/pkg/logger"
)

const (
	FollowActionFollowed   = "followed"
	FollowActionRequested  = "requested"
	FollowActionUnfollowed = "unfollowed"
	FollowActionCancelled  = "cancelled"

	StatusNotFollowing = "not_following"

	DefaultMutualLimit = 10
)

// FollowResult toggleFollow 的结果
type FollowResult struct {
	Following bool   `json:"following"`
	Action    string `json:"action"`
	Status    string `json:"status"`
}

// FollowState viewer 对 target 的关注状态
type FollowState struct {
	IsFollowing bool   `json:"is_following"`
	IsPending   bool   `json:"is_pending"`
	Status      string `json:"status"`
}

// FollowEntry 列表项：边 + 对方资料
type FollowEntry struct {
	EdgeID     string            `json:"id"`
	User       model.UserSummary `json:"user"`
	FollowedAt time.Time         `json:"followed_at"`
}

type FollowPage struct {
	Items []FollowEntry `json:"items"`
	PageInfo
}

// SuggestedUser 推荐关注
type SuggestedUser struct {
	model.UserSummary
	FollowersCount int64 `json:"followers_count"`
	MutualCount    int64 `json:"mutual_count"`
}

// RelationshipService 关注图：边的增删、请求审批、计数维护
type RelationshipService interface {
	ToggleFollow(ctx context.Context, followerID, followeeID string) (*FollowResult, error)
	AcceptRequest(ctx context.Context, actorID, edgeID string) (*model.Follow, error)
	RejectRequest(ctx context.Context, actorID, edgeID string) error
	RemoveFollower(ctx context.Context, userID, followerID string) error
	ListFollowers(ctx context.Context, userID string, page, pageSize int) (*FollowPage, error)
	ListFollowing(ctx context.Context, userID string, page, pageSize int) (*FollowPage, error)
	ListFollowRequests(ctx context.Context, userID string, page, pageSize int) (*FollowPage, error)
	FollowStatus(ctx context.Context, viewerID, targetID string) (*FollowState, error)
	MutualFollows(ctx context.Context, userA, userB string, limit int) ([]model.UserSummary, error)
	SuggestFollows(ctx context.Context, userID string, limit int) ([]SuggestedUser, error)
}

type relationshipService struct {
	db       *gorm.DB
	clock    clock.Clock
	notifier Notifier
	index    FollowingInvalidator
}

func NewRelationshipService(db *gorm.DB, clk clock.Clock, notifier Notifier, index FollowingInvalidator) RelationshipService {
	return &relationshipService{db: db, clock: clk, notifier: orNop(notifier), index: index}
}

// adjustFollowCounts 同时调整关注者的 following 与被关注者的 followers
func adjustFollowCounts(ctx context.Context, users repository.UserRepository, followerID, followeeID string, delta int64) error {
	if _, err := users.IncrStat(ctx, followerID, repository.ColFollowingCount, delta); err != nil {
		return err
	}
	_, err := users.IncrStat(ctx, followeeID, repository.ColFollowersCount, delta)
	return err
}

func (s *relationshipService) ToggleFollow(ctx context.Context, followerID, followeeID string) (*FollowResult, error) {
	if followerID == followeeID {
		return nil, apperr.InvalidState("you cannot follow yourself")
	}

	var res *FollowResult
	err := apperr.Retry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			users := repository.NewUserRepository(tx)
			follows := repository.NewFollowRepository(tx)

			followee, err := users.Get(ctx, followeeID)
			if err != nil {
				return apperr.FromStore(err, "user not found")
			}
			if _, err := users.Get(ctx, followerID); err != nil {
				return apperr.FromStore(err, "user not found")
			}

			existing, err := follows.FindForUpdate(ctx, followerID, followeeID)
			if err != nil {
				return err
			}
			if existing != nil {
				deleted, err := follows.Delete(ctx, existing.ID, existing.Status)
				if err != nil {
					return err
				}
				if deleted && existing.Counted() {
					if err := adjustFollowCounts(ctx, users, followerID, followeeID, -1); err != nil {
						return err
					}
				}
				action := FollowActionUnfollowed
				if existing.Status == model.FollowPending {
					action = FollowActionCancelled
				}
				res = &FollowResult{Following: false, Action: action, Status: StatusNotFollowing}
				return nil
			}

			if !followee.Visible() {
				return apperr.InvalidState("user is not available")
			}
			status := model.FollowAccepted
			if followee.IsPrivate {
				status = model.FollowPending
			}
			now := s.clock.Now()
			edge := &model.Follow{
				ID:         uuid.New().String(),
				FollowerID: followerID,
				FolloweeID: followeeID,
				Status:     status,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			created, err := follows.Create(ctx, edge)
			if err != nil {
				return err
			}
			// 并发插入已由对方完成，计数也由对方负责
			if created && edge.Counted() {
				if err := adjustFollowCounts(ctx, users, followerID, followeeID, 1); err != nil {
					return err
				}
			}
			action := FollowActionFollowed
			if status == model.FollowPending {
				action = FollowActionRequested
			}
			res = &FollowResult{Following: status == model.FollowAccepted, Action: action, Status: string(status)}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.IncToggle("follow", res.Action)
	s.invalidate(ctx, followerID)
	if res.Action == FollowActionFollowed {
		s.notifier.Notify(ctx, NotifyEvent{RecipientID: followeeID, FromUserID: followerID, Type: model.NotifyFollow})
	}
	return res, nil
}

func (s *relationshipService) AcceptRequest(ctx context.Context, actorID, edgeID string) (*model.Follow, error) {
	var edge *model.Follow
	err := apperr.Retry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			follows := repository.NewFollowRepository(tx)
			f, err := follows.Get(ctx, edgeID)
			if err != nil {
				return apperr.FromStore(err, "follow request not found")
			}
			if f.FolloweeID != actorID {
				return apperr.PermissionDenied("you can only accept your own follow requests")
			}
			if f.Status != model.FollowPending {
				return apperr.InvalidState("follow request is not pending")
			}
			ok, err := follows.Accept(ctx, edgeID)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.InvalidState("follow request is not pending")
			}
			if err := adjustFollowCounts(ctx, repository.NewUserRepository(tx), f.FollowerID, f.FolloweeID, 1); err != nil {
				return err
			}
			f.Status = model.FollowAccepted
			edge = f
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.IncToggle("follow", "accepted")
	s.invalidate(ctx, edge.FollowerID)
	s.notifier.Notify(ctx, NotifyEvent{RecipientID: edge.FolloweeID, FromUserID: edge.FollowerID, Type: model.NotifyFollow})
	return edge, nil
}

func (s *relationshipService) RejectRequest(ctx context.Context, actorID, edgeID string) error {
	err := apperr.Retry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			follows := repository.NewFollowRepository(tx)
			f, err := follows.Get(ctx, edgeID)
			if err != nil {
				return apperr.FromStore(err, "follow request not found")
			}
			if f.FolloweeID != actorID {
				return apperr.PermissionDenied("you can only reject your own follow requests")
			}
			if f.Status != model.FollowPending {
				return apperr.InvalidState("follow request is not pending")
			}
			deleted, err := follows.Delete(ctx, f.ID, model.FollowPending)
			if err != nil {
				return err
			}
			if !deleted {
				return apperr.InvalidState("follow request is not pending")
			}
			return nil
		})
	})
	if err == nil {
		metrics.IncToggle("follow", "rejected")
	}
	return err
}

// RemoveFollower 被关注者主动移除粉丝，只有 accepted 的边回退计数
func (s *relationshipService) RemoveFollower(ctx context.Context, userID, followerID string) error {
	err := apperr.Retry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			follows := repository.NewFollowRepository(tx)
			f, err := follows.FindForUpdate(ctx, followerID, userID)
			if err != nil {
				return err
			}
			if f == nil {
				return apperr.NotFound("follower not found")
			}
			deleted, err := follows.Delete(ctx, f.ID, f.Status)
			if err != nil {
				return err
			}
			if deleted && f.Counted() {
				return adjustFollowCounts(ctx, repository.NewUserRepository(tx), followerID, userID, -1)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	metrics.IncToggle("follow", "removed")
	s.invalidate(ctx, followerID)
	return nil
}

func (s *relationshipService) ListFollowers(ctx context.Context, userID string, page, pageSize int) (*FollowPage, error) {
	return s.listEdges(ctx, userID, page, pageSize, repository.FollowRepository.ListFollowers, func(f *model.Follow) string { return f.FollowerID })
}

func (s *relationshipService) ListFollowing(ctx context.Context, userID string, page, pageSize int) (*FollowPage, error) {
	return s.listEdges(ctx, userID, page, pageSize, repository.FollowRepository.ListFollowings, func(f *model.Follow) string { return f.FolloweeID })
}

func (s *relationshipService) ListFollowRequests(ctx context.Context, userID string, page, pageSize int) (*FollowPage, error) {
	return s.listEdges(ctx, userID, page, pageSize, repository.FollowRepository.ListPending, func(f *model.Follow) string { return f.FollowerID })
}

type listFn func(repository.FollowRepository, context.Context, string, int, int) ([]*model.Follow, error)

func (s *relationshipService) listEdges(ctx context.Context, userID string, page, pageSize int, list listFn, other func(*model.Follow) string) (*FollowPage, error) {
	page, pageSize, offset := normalizePage(page, pageSize)
	users := repository.NewUserRepository(s.db)
	if _, err := users.Get(ctx, userID); err != nil {
		return nil, apperr.FromStore(err, "user not found")
	}
	edges, err := list(repository.NewFollowRepository(s.db), ctx, userID, offset, pageSize)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = other(e)
	}
	byID, err := users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := &FollowPage{Items: make([]FollowEntry, 0, len(edges)), PageInfo: pageInfo(page, pageSize, len(edges))}
	for _, e := range edges {
		u, ok := byID[other(e)]
		if !ok {
			continue
		}
		out.Items = append(out.Items, FollowEntry{EdgeID: e.ID, User: u.Summary(), FollowedAt: e.CreatedAt})
	}
	return out, nil
}

func (s *relationshipService) FollowStatus(ctx context.Context, viewerID, targetID string) (*FollowState, error) {
	if _, err := repository.NewUserRepository(s.db).Get(ctx, targetID); err != nil {
		return nil, apperr.FromStore(err, "user not found")
	}
	f, err := repository.NewFollowRepository(s.db).Find(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return &FollowState{Status: StatusNotFollowing}, nil
	}
	return &FollowState{
		IsFollowing: f.Status == model.FollowAccepted,
		IsPending:   f.Status == model.FollowPending,
		Status:      string(f.Status),
	}, nil
}

func (s *relationshipService) MutualFollows(ctx context.Context, userA, userB string, limit int) ([]model.UserSummary, error) {
	if limit <= 0 || limit > DefaultMutualLimit {
		limit = DefaultMutualLimit
	}
	users := repository.NewUserRepository(s.db)
	for _, id := range []string{userA, userB} {
		if _, err := users.Get(ctx, id); err != nil {
			return nil, apperr.FromStore(err, "user not found")
		}
	}
	ids, err := repository.NewFollowRepository(s.db).MutualIDs(ctx, userA, userB, limit)
	if err != nil {
		return nil, err
	}
	byID, err := users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

func (s *relationshipService) SuggestFollows(ctx context.Context, userID string, limit int) ([]SuggestedUser, error) {
	_, limit, _ = normalizePage(1, limit)
	cands, err := repository.NewFollowRepository(s.db).Suggest(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.UserID
	}
	byID, err := repository.NewUserRepository(s.db).GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]SuggestedUser, 0, len(cands))
	for _, c := range cands {
		if u, ok := byID[c.UserID]; ok {
			out = append(out, SuggestedUser{UserSummary: u.Summary(), FollowersCount: u.Stats.FollowersCount, MutualCount: c.Via})
		}
	}
	return out, nil
}

func (s *relationshipService) invalidate(ctx context.Context, userID string) {
	if s.index == nil {
		return
	}
	if err := s.index.Invalidate(ctx, userID); err != nil {
		logger.Warn("following index invalidate failed", zap.String("user", userID), zap.Error(err))
	}
}
