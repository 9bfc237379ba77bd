package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"

	"workshopcast/pkg/fetcher"
	"workshopcast/pkg/logger"
	"workshopcast/pkg/models"
	"workshopcast/pkg/packager"
	"workshopcast/pkg/publisher"
	"workshopcast/pkg/telegram"
	"workshopcast/pkg/ui"
)

// MetadataSource reads item metadata from the workshop pages.
type MetadataSource interface {
	Exists(ctx context.Context, id string) (bool, error)
	Scrape(ctx context.Context, id string) (*models.Metadata, error)
}

// Downloader fetches item content.
type Downloader interface {
	Fetch(ctx context.Context, id string) (*fetcher.Result, error)
	Available() error
}

// Archiver packages fetched content into volumes.
type Archiver interface {
	Package(ctx context.Context, id string) (*packager.Result, error)
	Available() error
}

// Cache holds packaged items awaiting publication.
type Cache interface {
	Store(item *models.WorkshopItem, sourceDir string) error
	ListPending() ([]*models.WorkshopItem, error)
	EntryDir(id string) string
	Evict(id string) error
}

// Notifier reports finished publications.
type Notifier interface {
	SendSuccess(title, message string)
	SendError(title, message string)
}

// Deps are the collaborators of a Workflow. Notifier is optional.
type Deps struct {
	Prompt    Prompter
	Steam     MetadataSource
	Images    publisher.ImageSource
	Fetcher   Downloader
	Packager  Archiver
	Cache     Cache
	Connector Connector
	Notifier  Notifier
	Publish   publisher.Options
	ChannelID int64
	Out       io.Writer
	Logger    logger.Logger
}

// Workflow binds the components into the user facing flows.
type Workflow struct {
	prompt    Prompter
	steam     MetadataSource
	images    publisher.ImageSource
	fetcher   Downloader
	packager  Archiver
	cache     Cache
	connector Connector
	notifier  Notifier
	pubOpts   publisher.Options
	channelID int64
	out       io.Writer
	logger    logger.Logger
}

// New creates a Workflow.
func New(d Deps) *Workflow {
	if d.Logger == nil {
		d.Logger = logger.GetLogger()
	}
	if d.Out == nil {
		d.Out = io.Discard
	}
	return &Workflow{
		prompt:    d.Prompt,
		steam:     d.Steam,
		images:    d.Images,
		fetcher:   d.Fetcher,
		packager:  d.Packager,
		cache:     d.Cache,
		connector: d.Connector,
		notifier:  d.Notifier,
		pubOpts:   d.Publish,
		channelID: d.ChannelID,
		out:       d.Out,
		logger:    d.Logger.WithField("component", "workflow"),
	}
}

// Check verifies the external tools are installed.
func (w *Workflow) Check() error {
	return errors.Join(w.fetcher.Available(), w.packager.Available())
}

// Run is the interactive entry point: offer pending cache entries, then
// run the chosen menu flow once.
func (w *Workflow) Run(ctx context.Context) error {
	if err := w.Check(); err != nil {
		return err
	}
	if err := w.Resume(ctx); err != nil {
		if ctx.Err() != nil {
			return err
		}
		w.logger.WithError(err).Warn("Some cached items were not published")
	}

	choice, err := w.MenuChoice()
	if err != nil {
		return err
	}
	switch choice {
	case ChoiceFetch:
		_, err = w.FetchOnly(ctx, "")
	case ChoicePublish:
		err = w.PublishOnly(ctx, "")
	default:
		err = w.FetchAndPublish(ctx, "")
	}
	return err
}

// resolveID validates a given ID or URL, or asks for one when empty.
func (w *Workflow) resolveID(ctx context.Context, input string) (string, error) {
	if input == "" {
		return w.AskWorkshopID(ctx)
	}
	id, err := models.ParseID(input)
	if err != nil {
		return "", err
	}
	exists, err := w.checkExists(ctx, id)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("workshop item %s does not exist", id)
	}
	return id, nil
}

// FetchOnly scrapes, downloads and packages an item and stores it in the
// cache. An empty input asks for the ID.
func (w *Workflow) FetchOnly(ctx context.Context, input string) (*models.WorkshopItem, error) {
	id, err := w.resolveID(ctx, input)
	if err != nil {
		return nil, err
	}
	return w.fetchAndCache(ctx, id)
}

func (w *Workflow) fetchAndCache(ctx context.Context, id string) (*models.WorkshopItem, error) {
	log := w.logger.WithField("item_id", id)

	logger.LogStep(log, id, "scrape")
	meta, err := w.steam.Scrape(ctx, id)
	if err != nil {
		return nil, err
	}

	logger.LogStep(log, id, "fetch")
	fetched, err := w.fetcher.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	log.WithFields(map[string]interface{}{
		"attempts": fetched.Attempts,
		"timeouts": fetched.Timeouts,
		"resets":   fetched.Resets,
	}).Info("Item downloaded")

	logger.LogStep(log, id, "package")
	packaged, err := w.packager.Package(ctx, id)
	if err != nil {
		return nil, err
	}

	item := packaged.Item(id)
	item.Merge(meta)

	logger.LogStep(log, id, "cache")
	if err := w.cache.Store(item, packaged.Dir); err != nil {
		return nil, err
	}
	return item, nil
}

// PublishOnly scrapes an item and publishes it without archive parts.
func (w *Workflow) PublishOnly(ctx context.Context, input string) error {
	m, channel, err := w.open(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	id, err := w.resolveID(ctx, input)
	if err != nil {
		return err
	}
	meta, err := w.steam.Scrape(ctx, id)
	if err != nil {
		return err
	}
	return w.publish(ctx, m, channel, models.FromMetadata(id, meta), "")
}

// FetchAndPublish runs FetchOnly, publishes the cached entry and evicts it.
func (w *Workflow) FetchAndPublish(ctx context.Context, input string) error {
	m, channel, err := w.open(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	item, err := w.FetchOnly(ctx, input)
	if err != nil {
		return err
	}
	if err := w.publish(ctx, m, channel, item, w.cache.EntryDir(item.PublisherID)); err != nil {
		return err
	}
	return w.cache.Evict(item.PublisherID)
}

// Resume offers pending cache entries for publication. Each selected item
// gets its own session and is evicted once published; failed items stay
// cached and the remaining ones are still attempted.
func (w *Workflow) Resume(ctx context.Context) error {
	pending, err := w.cache.ListPending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	upload, err := w.Confirm("Found items in cache. Upload them")
	if err != nil || !upload {
		return err
	}
	selected, err := w.SelectItems(pending)
	if err != nil {
		return err
	}

	display := ui.NewBatchDisplay(w.out, len(selected))
	var failures []error
	for _, item := range selected {
		display.Start(fmt.Sprintf("%s - %s", item.PublisherID, item.Title))
		if err := w.resumeOne(ctx, item); err != nil {
			display.Fail(err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures = append(failures, fmt.Errorf("%s: %w", item.PublisherID, err))
			continue
		}
		display.Done()
	}
	display.Complete()
	return errors.Join(failures...)
}

func (w *Workflow) resumeOne(ctx context.Context, item *models.WorkshopItem) error {
	m, channel, err := w.open(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := w.publish(ctx, m, channel, item, w.cache.EntryDir(item.PublisherID)); err != nil {
		return err
	}
	return w.cache.Evict(item.PublisherID)
}

// open connects a session and resolves the target channel with it.
func (w *Workflow) open(ctx context.Context) (telegram.Messenger, *telegram.Channel, error) {
	m, err := w.connector.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	channel, err := w.AskChannel(ctx, m)
	if err != nil {
		_ = m.Close()
		return nil, nil, err
	}
	return m, channel, nil
}

func (w *Workflow) publish(ctx context.Context, m telegram.Messenger, channel *telegram.Channel, item *models.WorkshopItem, dir string) error {
	logger.LogStep(w.logger, item.PublisherID, "publish")
	state, err := publisher.New(m, w.images, w.pubOpts, w.logger).Publish(ctx, channel, item, dir)
	if err != nil {
		if w.notifier != nil {
			w.notifier.SendError("Publish failed", fmt.Sprintf("%s: %v", item.Title, err))
		}
		return err
	}
	if w.notifier != nil {
		w.notifier.SendSuccess("Published", fmt.Sprintf("%s %s", item.Title, state.PostLink))
	}
	return nil
}
