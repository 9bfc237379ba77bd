package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Media group limits accepted by the platform per request.
const (
	MaxPhotoGroup    = 6
	MaxDocumentGroup = 10
)

var (
	ErrNotChannel     = errors.New("chat is not a channel")
	ErrNoDiscussion   = errors.New("channel has no linked discussion group")
	ErrDiscussionMiss = errors.New("discussion message not found")
	ErrClosed         = errors.New("messenger is closed")
	ErrGroupSize      = errors.New("media group needs between 2 and 10 files")
)

// MediaKind selects how a group of files is presented.
type MediaKind int

const (
	KindPhoto MediaKind = iota
	KindDocument
)

func (k MediaKind) String() string {
	if k == KindPhoto {
		return "photo"
	}
	return "document"
}

// Chat is the resolved identity of a channel or group.
type Chat struct {
	ID       int64
	Title    string
	Username string
}

// Channel is a broadcast channel together with its linked discussion group.
type Channel struct {
	Chat
	Discussion Chat
}

// Message addresses one sent message.
type Message struct {
	ID     int
	ChatID int64
}

// File is an attachment. Exactly one of URL, Path or Data is used, in that
// order of preference; Name labels uploads.
type File struct {
	Name string
	URL  string
	Path string
	Data []byte
}

// Progress receives upload progress per file as a percentage in [0, 100].
type Progress func(name string, percent float64)

// Messenger is the subset of the messaging platform the publisher drives.
type Messenger interface {
	// ResolveChannel checks that id names a channel with a discussion group.
	ResolveChannel(ctx context.Context, id int64) (*Channel, error)
	// SendPhoto posts a photo with an HTML caption.
	SendPhoto(ctx context.Context, chatID int64, photo File, caption string) (Message, error)
	// DiscussionMessage locates the discussion group copy of a channel post.
	DiscussionMessage(ctx context.Context, channel *Channel, post Message) (Message, error)
	// ReplyPhoto replies to a message with one photo.
	ReplyPhoto(ctx context.Context, to Message, photo File) (Message, error)
	// ReplyDocument replies to a message with one uploaded document.
	ReplyDocument(ctx context.Context, to Message, doc File, progress Progress) (Message, error)
	// ReplyGroup replies to a message with a media group of 2 to 10 files.
	ReplyGroup(ctx context.Context, to Message, kind MediaKind, files []File, progress Progress) ([]Message, error)
	// EditCaption replaces the HTML caption of a message.
	EditCaption(ctx context.Context, msg Message, caption string) error
	// Close ends the session.
	Close() error
}

// MessageLink returns the public link of a channel message. Private
// channels use the t.me/c form with the -100 prefix stripped.
func MessageLink(channel Chat, messageID int) string {
	if channel.Username != "" {
		return fmt.Sprintf("https://t.me/%s/%d", channel.Username, messageID)
	}
	id := strconv.FormatInt(channel.ID, 10)
	id = strings.TrimPrefix(id, "-100")
	id = strings.TrimPrefix(id, "-")
	return fmt.Sprintf("https://t.me/c/%s/%d", id, messageID)
}
