package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamDefinitionKey returns the cache key for a full exam definition.
// Only the trusted side reads this key — it contains correct answers.
func (r *CacheKeyStruct) ExamDefinitionKey(examID string) string {
	return fmt.Sprintf("exam:%s:definition", examID)
}

// ResultKey returns the cache key for a student's graded result.
func (r *CacheKeyStruct) ResultKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:result", studentID, examID)
}

var CacheKey = NewCacheKeyStruct()
