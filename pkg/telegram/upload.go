package telegram

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// progressReader reports how much of a file has been consumed by the
// multipart encoder.
type progressReader struct {
	r        io.Reader
	name     string
	size     int64
	read     int64
	report   Progress
	finished bool
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.report != nil && p.size > 0 && !p.finished {
		pct := float64(p.read) * 100 / float64(p.size)
		if pct >= 100 {
			pct = 100
			p.finished = true
		}
		p.report(p.name, pct)
	}
	return n, err
}

// uploads tracks the files opened for one request so every attempt starts
// from a fresh reader.
type uploads struct {
	mu    sync.Mutex
	files []*os.File
}

func (u *uploads) close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, f := range u.files {
		_ = f.Close()
	}
	u.files = nil
}

// data converts f into a request payload, opening it from disk when needed.
func (u *uploads) data(f File, progress Progress) (tgbotapi.RequestFileData, error) {
	switch {
	case f.URL != "":
		return tgbotapi.FileURL(f.URL), nil
	case f.Path != "":
		fh, err := os.Open(f.Path)
		if err != nil {
			return nil, err
		}
		info, err := fh.Stat()
		if err != nil {
			_ = fh.Close()
			return nil, err
		}
		u.mu.Lock()
		u.files = append(u.files, fh)
		u.mu.Unlock()

		name := f.Name
		if name == "" {
			name = filepath.Base(f.Path)
		}
		return tgbotapi.FileReader{
			Name:   name,
			Reader: &progressReader{r: fh, name: name, size: info.Size(), report: progress},
		}, nil
	default:
		name := f.Name
		if name == "" {
			name = "image.jpeg"
		}
		return tgbotapi.FileBytes{Name: name, Bytes: f.Data}, nil
	}
}
