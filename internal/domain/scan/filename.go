package scan

import (
	"fmt"
	"sync"
	"time"
)

// Source labels where the submitted image came from. The distinction is
// cosmetic; both sources run the same pipeline.
type Source string

const (
	SourceCamera  Source = "camera"
	SourceGallery Source = "gallery"
)

func (s Source) Valid() bool {
	return s == SourceCamera || s == SourceGallery
}

// FilenameGenerator produces object names of the form <source>_<millis>.jpg.
// The millisecond suffix is forced strictly increasing per generator, so two
// submissions inside the same millisecond still get distinct names.
type FilenameGenerator struct {
	mu         sync.Mutex
	lastMillis int64
	now        func() time.Time
}

func NewFilenameGenerator() *FilenameGenerator {
	return &FilenameGenerator{now: time.Now}
}

// NewFilenameGeneratorAt pins the clock; used by tests.
func NewFilenameGeneratorAt(now func() time.Time) *FilenameGenerator {
	if now == nil {
		now = time.Now
	}
	return &FilenameGenerator{now: now}
}

func (g *FilenameGenerator) Next(source Source) (string, error) {
	if !source.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	millis := g.now().UnixMilli()
	if millis <= g.lastMillis {
		millis = g.lastMillis + 1
	}
	g.lastMillis = millis

	return fmt.Sprintf("%s_%d.jpg", source, millis), nil
}
