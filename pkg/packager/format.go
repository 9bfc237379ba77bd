package packager

import (
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"workshopcast/pkg/models"
)

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]+`)

var sizeUnits = []string{"", "K", "M", "G", "T"}

// NormalizeTitle turns a title into a filesystem-safe token: accents are
// folded and every run of other characters becomes a single underscore.
func NormalizeTitle(title string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, title)
	if err != nil {
		folded = title
	}
	return nonAlphanumeric.ReplaceAllString(folded, "_")
}

// FormatBytes renders a byte count with 1000-based units and one decimal,
// e.g. 950 -> "950.0B", 1500000 -> "1.5MB". Values past terabytes stay in T.
func FormatBytes(n int64) string {
	v := float64(n)
	for i, unit := range sizeUnits {
		if math.Abs(v) < 1000 || i == len(sizeUnits)-1 {
			return fmt.Sprintf("%.1f%sB", v, unit)
		}
		v /= 1000
	}
	return ""
}

// DirSize sums the sizes of all regular files below dir.
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// DetectLanguages flags a language code when any entry directly inside dir
// has the code followed by an underscore in its name (en_audio, fr_zone).
func DetectLanguages(dir string) (models.Languages, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	langs := models.NewLanguages()
	for _, entry := range entries {
		for _, code := range models.AllLanguages {
			if strings.Contains(entry.Name(), code+"_") {
				langs[code] = true
			}
		}
	}
	return langs, nil
}
