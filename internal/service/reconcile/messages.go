package reconcile

// Request and response bodies of moviematch.v1.ReconcileService.
// They travel as JSON through server.Codec.

type LikeRequest struct {
	ViewerID string `json:"viewer_id"`
	TargetID string `json:"target_id"`
	Context  string `json:"context,omitempty"`
}

type LikeResponse struct {
	Matched bool   `json:"matched"`
	Match   *Entry `json:"match,omitempty"`
}

type PassRequest struct {
	ViewerID string `json:"viewer_id"`
	TargetID string `json:"target_id"`
}

type PassResponse struct{}

type GetProjectionRequest struct {
	ViewerID string `json:"viewer_id"`
}

type GetProjectionResponse struct {
	LikedByMe []*Entry `json:"liked_by_me"`
	LikedMe   []*Entry `json:"liked_me"`
	Matched   []*Entry `json:"matched"`
}

type ListLikedMeRequest struct {
	ViewerID        string `json:"viewer_id"`
	PaginationToken string `json:"pagination_token,omitempty"`
	Limit           int32  `json:"limit,omitempty"`
}

type ListLikedMeResponse struct {
	Likers              []*Entry `json:"likers"`
	NextPaginationToken string   `json:"next_pagination_token,omitempty"`
}

type CountLikedMeRequest struct {
	ViewerID string `json:"viewer_id"`
}

type CountLikedMeResponse struct {
	Count uint64 `json:"count"`
}

// Entry is one user in a projection list. UnixTimestamp is in millis: the
// like time, or matchedAt for matches.
type Entry struct {
	UserID        string `json:"user_id"`
	Context       string `json:"context,omitempty"`
	UnixTimestamp int64  `json:"unix_timestamp"`
}
