package util

import (
	"time"
)

func TimePointer(t time.Time) *time.Time {
	return &t
}
