package middleware

// contextKey is a dedicated type for request context keys to avoid collisions.
type contextKey string

// UserIDKey holds the authenticated user's ID in the gin context.
const UserIDKey contextKey = "userID"
