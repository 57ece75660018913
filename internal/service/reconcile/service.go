package reconcile

import (
	"context"
	"sort"
	"strings"

	"github.com/oggyb/moviematch/internal/app"
	svcErr "github.com/oggyb/moviematch/internal/errors"
	"github.com/oggyb/moviematch/internal/ledger"
	"github.com/oggyb/moviematch/internal/projection"
	"github.com/oggyb/moviematch/internal/utils/pagination"
)

const (
	defaultPageSize = 5
	maxPageSize     = 100
)

// Service implements the Reconcile gRPC API on top of the detector and
// projector held in AppContext. The Redis count cache is optional.
type Service struct {
	appCtx *app.AppContext
}

// NewReconcileService creates a new Reconcile service with dependencies from AppContext.
func NewReconcileService(appCtx *app.AppContext) *Service {
	return &Service{appCtx: appCtx}
}

var _ ReconcileServer = (*Service)(nil)

// Like records viewer's like of target and reports whether it completed a match.
//
// Behavior:
//   - Validates viewer and target IDs (must be set and different).
//   - Runs the mutual-match detector.
//   - Invalidates the cached liked-me counts of both users.
//   - A partial match maps to Aborted; retrying the like completes it.
func (s *Service) Like(ctx context.Context, req *LikeRequest) (*LikeResponse, error) {
	s.appCtx.Logger.Debug("Like called", "viewer", req.ViewerID, "target", req.TargetID, "context", req.Context)

	if err := requirePair(req.ViewerID, req.TargetID); err != nil {
		return nil, err
	}

	res, err := s.appCtx.Detector.Like(ctx, req.ViewerID, req.TargetID, req.Context)
	// the like may have landed even when the match did not
	s.invalidateCounts(ctx, req.ViewerID, req.TargetID)
	if err != nil {
		s.appCtx.Logger.Error("Like failed", "viewer", req.ViewerID, "target", req.TargetID, "err", err)
		return nil, svcErr.Map(err)
	}

	resp := &LikeResponse{Matched: res.Matched}
	if res.Match != nil {
		resp.Match = matchEntry(*res.Match)
	}
	return resp, nil
}

// Pass records that viewer decided against target and retracts viewer's like.
func (s *Service) Pass(ctx context.Context, req *PassRequest) (*PassResponse, error) {
	s.appCtx.Logger.Debug("Pass called", "viewer", req.ViewerID, "target", req.TargetID)

	if err := requirePair(req.ViewerID, req.TargetID); err != nil {
		return nil, err
	}

	err := s.appCtx.Detector.Pass(ctx, req.ViewerID, req.TargetID)
	s.invalidateCounts(ctx, req.TargetID)
	if err != nil {
		s.appCtx.Logger.Error("Pass failed", "viewer", req.ViewerID, "target", req.TargetID, "err", err)
		return nil, svcErr.Map(err)
	}
	return &PassResponse{}, nil
}

// GetProjection returns the viewer's three relationship lists, newest first.
func (s *Service) GetProjection(ctx context.Context, req *GetProjectionRequest) (*GetProjectionResponse, error) {
	s.appCtx.Logger.Debug("GetProjection called", "viewer", req.ViewerID)

	if strings.TrimSpace(req.ViewerID) == "" {
		return nil, svcErr.InvalidArgument("viewer_id is required")
	}

	p, err := s.appCtx.Projector.Get(ctx, req.ViewerID)
	if err != nil {
		s.appCtx.Logger.Error("GetProjection failed", "viewer", req.ViewerID, "err", err)
		return nil, svcErr.Map(err)
	}

	return &GetProjectionResponse{
		LikedByMe: toEntries(p.LikedByMe),
		LikedMe:   toEntries(p.LikedMe),
		Matched:   toEntries(p.Matched),
	}, nil
}

// ListLikedMe returns the users who like the viewer and are not matched
// with them, newest first, one page at a time.
//
// Example:
//
//	svc.ListLikedMe(ctx, &ListLikedMeRequest{ViewerID: "u1", Limit: 10})
func (s *Service) ListLikedMe(ctx context.Context, req *ListLikedMeRequest) (*ListLikedMeResponse, error) {
	s.appCtx.Logger.Debug("ListLikedMe called", "viewer", req.ViewerID, "token", req.PaginationToken)

	if strings.TrimSpace(req.ViewerID) == "" {
		return nil, svcErr.InvalidArgument("viewer_id is required")
	}
	cursor, err := pagination.Decode(req.PaginationToken)
	if err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	limit := int(req.Limit)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	p, err := s.appCtx.Projector.Get(ctx, req.ViewerID)
	if err != nil {
		s.appCtx.Logger.Error("ListLikedMe failed", "viewer", req.ViewerID, "err", err)
		return nil, svcErr.Map(err)
	}

	// page on the wire precision so the cursor comparison is exact
	likers := toEntries(p.LikedMe)
	sort.SliceStable(likers, func(i, j int) bool {
		if likers[i].UnixTimestamp != likers[j].UnixTimestamp {
			return likers[i].UnixTimestamp > likers[j].UnixTimestamp
		}
		return likers[i].UserID < likers[j].UserID
	})

	resp := &ListLikedMeResponse{Likers: []*Entry{}}
	for i, e := range likers {
		if !cursor.Before(e.UserID, e.UnixTimestamp) {
			continue
		}
		if len(resp.Likers) == limit {
			last := resp.Likers[len(resp.Likers)-1]
			token, err := pagination.Encode(pagination.Cursor{UserID: last.UserID, LikedUnix: last.UnixTimestamp})
			if err != nil {
				return nil, svcErr.Map(err)
			}
			resp.NextPaginationToken = token
			break
		}
		resp.Likers = append(resp.Likers, likers[i])
	}

	s.appCtx.Logger.Debug("ListLikedMe result", "liker_count", len(resp.Likers), "next_token", resp.NextPaginationToken)
	return resp, nil
}

// CountLikedMe returns how many users are in the viewer's liked-me list.
// Cache-first strategy:
//  1. Attempts to read from Redis (likes:count:userID).
//  2. On a miss, computes the projection.
//  3. Stores the count with a 1h TTL; Like/Pass invalidate it.
func (s *Service) CountLikedMe(ctx context.Context, req *CountLikedMeRequest) (*CountLikedMeResponse, error) {
	s.appCtx.Logger.Debug("CountLikedMe called", "viewer", req.ViewerID)

	if strings.TrimSpace(req.ViewerID) == "" {
		return nil, svcErr.InvalidArgument("viewer_id is required")
	}

	rc := s.appCtx.RedisCache
	if rc != nil {
		n, ok, err := rc.GetLikeCount(ctx, req.ViewerID)
		if err != nil {
			s.appCtx.Logger.Warn("count cache read failed", "viewer", req.ViewerID, "err", err)
		} else if ok {
			return &CountLikedMeResponse{Count: uint64(n)}, nil
		}
	}

	p, err := s.appCtx.Projector.Get(ctx, req.ViewerID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	count := len(p.LikedMe)

	if rc != nil {
		if err := rc.SetLikeCount(ctx, req.ViewerID, int64(count)); err != nil {
			s.appCtx.Logger.Warn("count cache write failed", "viewer", req.ViewerID, "err", err)
		}
	}
	return &CountLikedMeResponse{Count: uint64(count)}, nil
}

func (s *Service) invalidateCounts(ctx context.Context, userIDs ...string) {
	if s.appCtx.RedisCache == nil {
		return
	}
	for _, id := range userIDs {
		if err := s.appCtx.RedisCache.InvalidateLikeCount(ctx, id); err != nil {
			s.appCtx.Logger.Warn("count cache invalidation failed", "user", id, "err", err)
		}
	}
}

func requirePair(viewerID, targetID string) error {
	if strings.TrimSpace(viewerID) == "" || strings.TrimSpace(targetID) == "" {
		return svcErr.InvalidArgument("viewer_id and target_id are required")
	}
	if viewerID == targetID {
		return svcErr.Map(svcErr.ErrSelfAction)
	}
	return nil
}

func toEntries(in []projection.Entry) []*Entry {
	out := make([]*Entry, 0, len(in))
	for _, e := range in {
		out = append(out, &Entry{UserID: e.UserID, Context: e.Context, UnixTimestamp: e.At.UnixMilli()})
	}
	return out
}

func matchEntry(m ledger.Match) *Entry {
	return &Entry{UserID: m.MatchedUserID, Context: m.Context, UnixTimestamp: m.MatchedAt.UnixMilli()}
}
