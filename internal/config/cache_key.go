package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentAuthKey returns the cache key for a student's login session (JTI).
func (r *CacheKeyStruct) StudentAuthKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// EvaluationResultKey returns the cache key for a memoized evaluation result.
// hash is the SHA-256 digest of the case ID plus the canonical transcript.
func (r *CacheKeyStruct) EvaluationResultKey(hash string) string {
	return fmt.Sprintf("eval:%s", hash)
}

// StationTranscriptKey returns the cache key for the live transcript buffer
// of one station assignment.
func (r *CacheKeyStruct) StationTranscriptKey(assignmentID string) string {
	return fmt.Sprintf("assignment:%s:transcript", assignmentID)
}

// SessionMonitorChannel returns the Redis PubSub channel for a competition
// session's live monitor stream.
func (r *CacheKeyStruct) SessionMonitorChannel(sessionID string) string {
	return fmt.Sprintf("competition:%s:monitor", sessionID)
}

var CacheKey = NewCacheKeyStruct()
