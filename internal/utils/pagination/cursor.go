package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor is the opaque pagination state we encode/decode.
// It is the last entry of the previous page: UserID + LikedUnix (in millis)
// establish a stable position in a newest-first list.
type Cursor struct {
	UserID    string `json:"user_id"`
	LikedUnix int64  `json:"liked_unix,omitempty"`
}

// IsZero reports whether c is the first-page cursor.
func (c Cursor) IsZero() bool {
	return c.UserID == "" && c.LikedUnix == 0
}

// Before reports whether the entry (userID, likedUnix) comes after the
// cursor position in newest-first order (time desc, user id asc).
func (c Cursor) Before(userID string, likedUnix int64) bool {
	if c.IsZero() {
		return true
	}
	if likedUnix != c.LikedUnix {
		return likedUnix < c.LikedUnix
	}
	return userID > c.UserID
}

// Encode converts a Cursor into a Base64 string.
func Encode(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Decode parses a Base64 string into a Cursor.
// Empty token → empty cursor (first page).
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid pagination token")
	}

	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, fmt.Errorf("invalid pagination token")
	}
	return c, nil
}
