package constants

import "time"

var CacheTTL = struct {
	Summary time.Duration
}{
	Summary: 6 * time.Hour, // knowledge summaries rarely change
}

var DBConfig = struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}{
	MaxOpenConns:    25,
	MaxIdleConns:    5,
	ConnMaxLifetime: 5 * time.Minute,
	ConnectTimeout:  5 * time.Second,
}

var WebSocketConfig = struct {
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
}{
	MaxReconnectAttempts: 5,
	ReconnectDelay:       5 * time.Second,
}

var InputLimits = struct {
	MaxMessageLength int
	MaxPhraseLength  int
}{
	MaxMessageLength: 500,
	MaxPhraseLength:  120,
}

var APIConfig = struct {
	NLPTimeout       time.Duration
	WikipediaTimeout time.Duration
	SinkTimeout      time.Duration
}{
	NLPTimeout:       5 * time.Second,
	WikipediaTimeout: 10 * time.Second,
	SinkTimeout:      5 * time.Second,
}

var OrderLimits = struct {
	MinQuantity int
	MaxQuantity int
}{
	MinQuantity: 1,
	MaxQuantity: 10,
}
