package config

import "time"

// Platform API Constants
const (
	// DefaultAPIURL is the base URL of the blog platform REST API
	DefaultAPIURL = "https://blog-platform.kata.academy/api"

	// DefaultPageSize is the number of articles shown per list page
	DefaultPageSize = 5

	// DefaultRequestTimeout bounds a single HTTP exchange with the platform
	DefaultRequestTimeout = 30 * time.Second
)

// Session Storage Constants
const (
	// SessionStoreFile keeps the session in a JSON file under the XDG state dir
	SessionStoreFile = "file"

	// SessionStoreRedis keeps the session in Redis
	SessionStoreRedis = "redis"

	// DefaultRedisAddr is used when REDIS_ADDR is unset
	DefaultRedisAddr = "localhost:6379"

	// DefaultRedisSessionKey is the key holding the serialized session
	DefaultRedisSessionKey = "blog:session"
)

// Event Publishing Constants
const (
	// DefaultKafkaTopic receives one message per settled mutation
	DefaultKafkaTopic = "blog-article-mutations"
)

// Mock API Constants
const (
	// DefaultMockPort is the port the in-memory API listens on
	DefaultMockPort = "8080"
)
