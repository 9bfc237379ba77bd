package publisher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"workshopcast/pkg/logger"
	"workshopcast/pkg/models"
	"workshopcast/pkg/steam"
	"workshopcast/pkg/telegram"
)

// ErrNoPreview is returned for items without a preview image.
var ErrNoPreview = errors.New("item has no preview image")

// ImageSource downloads highlight images.
type ImageSource interface {
	DownloadImage(ctx context.Context, url string) ([]byte, error)
}

// State tracks one publish operation. It is never persisted.
type State struct {
	Channel  *telegram.Channel
	Post     telegram.Message
	PostLink string
	Thread   telegram.Message
	// Archive is the message the download link points at, nil without parts.
	Archive *telegram.Message
}

// Options tune a Publisher.
type Options struct {
	SteamBase string
	MaxSide   int
	Progress  telegram.Progress
}

// Publisher posts one workshop item through a messaging session it owns.
type Publisher struct {
	messenger telegram.Messenger
	images    ImageSource
	opts      Options
	logger    logger.Logger
}

// New creates a Publisher. The messenger is closed when Publish returns.
func New(messenger telegram.Messenger, images ImageSource, opts Options, log logger.Logger) *Publisher {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.SteamBase == "" {
		opts.SteamBase = steam.BaseURL
	}
	if opts.MaxSide == 0 {
		opts.MaxSide = MaxPhotoSide
	}
	return &Publisher{
		messenger: messenger,
		images:    images,
		opts:      opts,
		logger:    log.WithField("component", "publisher"),
	}
}

// Publish posts the preview with the caption, replies with the highlights
// and the archive parts found in partsDir, then edits the caption with a
// link to the archive. The post is left in its uploading state if a reply
// fails.
func (p *Publisher) Publish(ctx context.Context, channel *telegram.Channel, item *models.WorkshopItem, partsDir string) (state *State, err error) {
	defer func() {
		if cerr := p.messenger.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if item.PreviewURL == "" {
		return nil, ErrNoPreview
	}
	log := p.logger.WithFields(map[string]interface{}{"item_id": item.PublisherID, "channel": channel.ID})

	state = &State{Channel: channel}
	state.Post, err = p.messenger.SendPhoto(ctx, channel.ID, telegram.File{URL: item.PreviewURL}, Caption(item, p.opts.SteamBase, UploadingLine))
	if err != nil {
		return state, fmt.Errorf("send post: %w", err)
	}
	state.PostLink = telegram.MessageLink(channel.Chat, state.Post.ID)
	log.WithField("post", state.PostLink).Info("Post sent")

	state.Thread, err = p.messenger.DiscussionMessage(ctx, channel, state.Post)
	if err != nil {
		return state, fmt.Errorf("locate discussion message: %w", err)
	}

	if err := p.uploadHighlights(ctx, state.Thread, item.HighlightURLs); err != nil {
		return state, fmt.Errorf("upload highlights: %w", err)
	}

	if len(item.ArchiveParts) == 0 {
		log.Info("No archive parts, caption left as posted")
		return state, nil
	}

	archive, err := p.uploadParts(ctx, state.Thread, partsDir, item.ArchiveParts)
	if err != nil {
		return state, fmt.Errorf("upload archive: %w", err)
	}
	state.Archive = &archive

	caption := Caption(item, p.opts.SteamBase, DownloadLine(state.PostLink, archive.ID))
	if err := p.messenger.EditCaption(ctx, state.Post, caption); err != nil {
		return state, fmt.Errorf("edit caption: %w", err)
	}
	log.Info("Post published")
	return state, nil
}

func (p *Publisher) uploadHighlights(ctx context.Context, thread telegram.Message, urls []string) error {
	switch len(urls) {
	case 0:
		return nil
	case 1:
		if _, err := p.messenger.ReplyPhoto(ctx, thread, telegram.File{URL: urls[0]}); err != nil {
			return err
		}
		logger.LogUpload(p.logger, "highlights", 1, 1)
		return nil
	}

	messages := 0
	for _, group := range Chunk(urls, telegram.MaxPhotoGroup) {
		files := make([]telegram.File, 0, len(group))
		for _, u := range group {
			f, err := p.fetchPhoto(ctx, u)
			if err != nil {
				return err
			}
			files = append(files, f)
		}

		if len(files) == 1 {
			if _, err := p.messenger.ReplyPhoto(ctx, thread, files[0]); err != nil {
				return err
			}
			messages++
			continue
		}
		sent, err := p.messenger.ReplyGroup(ctx, thread, telegram.KindPhoto, files, nil)
		if err != nil {
			return err
		}
		messages += len(sent)
	}
	logger.LogUpload(p.logger, "highlights", len(urls), messages)
	return nil
}

func (p *Publisher) fetchPhoto(ctx context.Context, url string) (telegram.File, error) {
	data, err := p.images.DownloadImage(ctx, url)
	if err != nil {
		return telegram.File{}, err
	}
	scaled, resized, err := Downscale(data, p.opts.MaxSide)
	if err != nil {
		return telegram.File{}, err
	}
	if resized {
		p.logger.WithField("url", url).Debug("Highlight downscaled")
	}
	return telegram.File{Name: "image.jpeg", Data: scaled}, nil
}

// uploadParts sends the archive volumes and returns the message the
// download link should point at: the first message of the first group.
func (p *Publisher) uploadParts(ctx context.Context, thread telegram.Message, dir string, parts []string) (telegram.Message, error) {
	files := make([]telegram.File, 0, len(parts))
	for _, name := range parts {
		files = append(files, telegram.File{Name: name, Path: filepath.Join(dir, name)})
	}

	var first *telegram.Message
	messages := 0
	for _, group := range Chunk(files, telegram.MaxDocumentGroup) {
		if len(group) == 1 {
			msg, err := p.messenger.ReplyDocument(ctx, thread, group[0], p.opts.Progress)
			if err != nil {
				return telegram.Message{}, err
			}
			if first == nil {
				first = &msg
			}
			messages++
			continue
		}

		sent, err := p.messenger.ReplyGroup(ctx, thread, telegram.KindDocument, group, p.opts.Progress)
		if err != nil {
			return telegram.Message{}, err
		}
		if first == nil && len(sent) > 0 {
			first = &sent[0]
		}
		messages += len(sent)
	}
	if first == nil {
		return telegram.Message{}, errors.New("no archive message was sent")
	}
	logger.LogUpload(p.logger, "archive", len(parts), messages)
	return *first, nil
}
