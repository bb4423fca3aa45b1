package contextkeys

type contextKey string

// DBContextKey stores the *gorm.DB (pool or transaction) in gin.Context.
const DBContextKey = contextKey("db")

// Keys set by the auth middleware on gin.Context.
const (
	UserIDKey = "userID"
	RoleKey   = "role"
	EmailKey  = "email"
)
