package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var mu sync.Mutex
var lastOrderMs int64

// GenerateOrderID returns ORD-<unix ms>. Calls within the same millisecond are
// pushed forward so ids stay unique inside one process.
func GenerateOrderID(now time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	ms := now.UnixMilli()
	if ms <= lastOrderMs {
		ms = lastOrderMs + 1
	}
	lastOrderMs = ms

	return fmt.Sprintf("ORD-%d", ms)
}

// GenerateSessionID returns SESSION-<unix ms>-<9 random chars>.
func GenerateSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("SESSION-%d-%s", now.UnixMilli(), suffix)
}

// GenerateTestReference returns prefix followed by the last 8 digits of the
// unix millisecond clock.
func GenerateTestReference(prefix string, now time.Time) string {
	return fmt.Sprintf("%s%08d", prefix, now.UnixMilli()%100000000)
}
