package publisher

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"workshopcast/pkg/models"
	"workshopcast/pkg/steam"
)

// Placeholders shown until the real value is known.
const (
	UploadingLine   = "🔄 Uploading..."
	CalculatingSize = "Calculating size"
	SearchingLangs  = "🏳️ Searching languages"
)

var lower = cases.Lower(language.Und)

// Caption renders the announcement caption in Telegram HTML. download is
// the already rendered download line.
func Caption(item *models.WorkshopItem, steamBase, download string) string {
	size := item.ContentSize
	if size == "" {
		size = CalculatingSize
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", escape(item.Title))
	fmt.Fprintf(&b, "<code>by %s</code>\n\n", escape(item.Authors))
	fmt.Fprintf(&b, "%s\n\n", download)
	fmt.Fprintf(&b, "📦 %s\n", escape(size))
	fmt.Fprintf(&b, "<a href=\"%s\">✅ v%s</a>\n", escape(steam.ChangelogURL(steamBase, item.PublisherID)), escape(item.ReleaseDate))
	fmt.Fprintf(&b, "<a href=\"%s\">🔗 Steam</a>\n", escape(steam.ItemURL(steamBase, item.PublisherID)))
	fmt.Fprintf(&b, "%s\n\n", LanguageLine(item.Languages))
	b.WriteString(Hashtags(item.Tags))
	return strings.TrimRight(b.String(), "\n")
}

// DownloadLine links to the archive comment under the post.
func DownloadLine(postLink string, archiveID int) string {
	href := fmt.Sprintf("%s?single&comment=%d", postLink, archiveID)
	return fmt.Sprintf("<a href=\"%s\">📥 Telegram</a>", escape(href))
}

// LanguageLine renders the language flags. Items whose languages were never
// detected, or where no pack matched, show the searching placeholder.
func LanguageLine(langs models.Languages) string {
	summary := langs.Summary()
	switch summary {
	case "":
		return SearchingLangs
	case models.SummaryEnglishOnly:
		return "🇺🇸 " + summary
	case models.SummaryAll:
		return "🏳️ " + summary
	default:
		return "Supported languages: " + summary
	}
}

// Hashtags renders tags as lowercase hashtags with spaces turned into
// underscores.
func Hashtags(tags []string) string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		tag = strings.Join(strings.Fields(lower.String(tag)), "_")
		out = append(out, "#"+escape(tag))
	}
	return strings.Join(out, " ")
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}
