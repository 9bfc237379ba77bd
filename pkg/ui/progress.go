package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/gosuri/uilive"
)

// UploadProgress renders per-file upload progress on one live line and
// leaves a permanent line for each finished file.
type UploadProgress struct {
	mu     sync.Mutex
	writer *uilive.Writer
	done   map[string]bool
}

// NewUploadProgress creates a renderer writing to out.
func NewUploadProgress(out io.Writer) *UploadProgress {
	w := uilive.New()
	w.Out = out
	return &UploadProgress{writer: w, done: map[string]bool{}}
}

// Report matches telegram.Progress.
func (u *UploadProgress) Report(name string, percent float64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done[name] {
		return
	}
	if percent >= 100 {
		u.done[name] = true
		fmt.Fprintf(u.writer.Bypass(), "[Uploaded] %q\n", name)
		return
	}
	fmt.Fprintf(u.writer, "[Uploading...] %q - %.2f%%\n", name, percent)
	_ = u.writer.Flush()
}
