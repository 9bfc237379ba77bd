package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"workshopcast/pkg/config"
	errs "workshopcast/pkg/errors"
	"workshopcast/pkg/logger"
	"workshopcast/pkg/ratelimit"
	"workshopcast/pkg/retry"
)

// GroupMessagesPerMinute is the platform's send limit into one group.
const GroupMessagesPerMinute = 20

// BotMessenger implements Messenger over the Telegram Bot API.
type BotMessenger struct {
	bot     *tgbotapi.BotAPI
	limiter ratelimit.Limiter
	backoff retry.BackoffStrategy
	idle    retry.BackoffStrategy // pause after an empty update poll
	logger  logger.Logger

	maxAttempts       int
	discussionTimeout time.Duration
	pollTimeout       int

	mu     sync.Mutex
	offset int
	closed bool
}

// Connect opens a bot session with token and verifies it with getMe.
func Connect(ctx context.Context, cfg config.TelegramConfig, token string, log logger.Logger) (*BotMessenger, error) {
	return ConnectWithClient(ctx, cfg, token, &http.Client{}, log)
}

// ConnectWithClient is Connect with a caller supplied HTTP client.
func ConnectWithClient(ctx context.Context, cfg config.TelegramConfig, token string, client tgbotapi.HTTPClient, log logger.Logger) (*BotMessenger, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, translate(err)
	}

	timeout := cfg.DiscussionTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	m := &BotMessenger{
		bot:               bot,
		limiter:           ratelimit.NewSlidingWindow(GroupMessagesPerMinute, time.Minute),
		backoff:           retry.DefaultExponentialBackoff(),
		idle:              &retry.ConstantBackoff{Delay: 200 * time.Millisecond},
		logger:            log.WithFields(map[string]interface{}{"component": "telegram", "bot": bot.Self.UserName}),
		maxAttempts:       3,
		discussionTimeout: timeout,
		pollTimeout:       1,
	}
	m.logger.Info("Messaging session opened")
	return m, nil
}

// ResolveChannel checks that id names a channel with a linked discussion
// group and returns both chats.
func (m *BotMessenger) ResolveChannel(ctx context.Context, id int64) (*Channel, error) {
	chat, err := m.getChat(ctx, id)
	if err != nil {
		return nil, err
	}
	if !chat.IsChannel() {
		return nil, ErrNotChannel
	}
	if chat.LinkedChatID == 0 {
		return nil, ErrNoDiscussion
	}

	linked, err := m.getChat(ctx, chat.LinkedChatID)
	if err != nil {
		return nil, err
	}

	return &Channel{
		Chat:       Chat{ID: chat.ID, Title: chat.Title, Username: chat.UserName},
		Discussion: Chat{ID: linked.ID, Title: linked.Title, Username: linked.UserName},
	}, nil
}

func (m *BotMessenger) getChat(ctx context.Context, id int64) (tgbotapi.Chat, error) {
	return call(ctx, m, "getChat", retry.DefaultRetryIf, func() (tgbotapi.Chat, error) {
		return m.bot.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: id}})
	})
}

// SendPhoto posts a photo with an HTML caption.
func (m *BotMessenger) SendPhoto(ctx context.Context, chatID int64, photo File, caption string) (Message, error) {
	return m.send(ctx, "sendPhoto", func(u *uploads) (tgbotapi.Chattable, error) {
		data, err := u.data(photo, nil)
		if err != nil {
			return nil, err
		}
		cfg := tgbotapi.NewPhoto(chatID, data)
		cfg.Caption = caption
		cfg.ParseMode = tgbotapi.ModeHTML
		return cfg, nil
	})
}

// ReplyPhoto replies to a message with one photo.
func (m *BotMessenger) ReplyPhoto(ctx context.Context, to Message, photo File) (Message, error) {
	return m.send(ctx, "sendPhoto", func(u *uploads) (tgbotapi.Chattable, error) {
		data, err := u.data(photo, nil)
		if err != nil {
			return nil, err
		}
		cfg := tgbotapi.NewPhoto(to.ChatID, data)
		cfg.ReplyToMessageID = to.ID
		return cfg, nil
	})
}

// ReplyDocument replies to a message with one uploaded document.
func (m *BotMessenger) ReplyDocument(ctx context.Context, to Message, doc File, progress Progress) (Message, error) {
	return m.send(ctx, "sendDocument", func(u *uploads) (tgbotapi.Chattable, error) {
		data, err := u.data(doc, progress)
		if err != nil {
			return nil, err
		}
		cfg := tgbotapi.NewDocument(to.ChatID, data)
		cfg.ReplyToMessageID = to.ID
		return cfg, nil
	})
}

// ReplyGroup replies to a message with a media group.
func (m *BotMessenger) ReplyGroup(ctx context.Context, to Message, kind MediaKind, files []File, progress Progress) ([]Message, error) {
	if len(files) < 2 || len(files) > MaxDocumentGroup {
		return nil, fmt.Errorf("%w: got %d", ErrGroupSize, len(files))
	}

	sent, err := call(ctx, m, "sendMediaGroup", rateLimited, func() ([]tgbotapi.Message, error) {
		u := &uploads{}
		defer u.close()

		media := make([]interface{}, 0, len(files))
		for _, f := range files {
			data, err := u.data(f, progress)
			if err != nil {
				return nil, &errs.Error{Type: errs.ErrorTypeUnknown, Message: "failed to open attachment", Err: err}
			}
			if kind == KindPhoto {
				media = append(media, tgbotapi.NewInputMediaPhoto(data))
			} else {
				media = append(media, tgbotapi.NewInputMediaDocument(data))
			}
		}

		cfg := tgbotapi.NewMediaGroup(to.ChatID, media)
		cfg.ReplyToMessageID = to.ID
		return m.bot.SendMediaGroup(cfg)
	})
	if err != nil {
		return nil, err
	}

	out := make([]Message, 0, len(sent))
	for _, msg := range sent {
		out = append(out, convert(msg))
	}
	return out, nil
}

// EditCaption replaces the HTML caption of a message.
func (m *BotMessenger) EditCaption(ctx context.Context, msg Message, caption string) error {
	_, err := call(ctx, m, "editMessageCaption", retry.DefaultRetryIf, func() (*tgbotapi.APIResponse, error) {
		cfg := tgbotapi.NewEditMessageCaption(msg.ChatID, msg.ID, caption)
		cfg.ParseMode = tgbotapi.ModeHTML
		return m.bot.Request(cfg)
	})
	return err
}

// DiscussionMessage polls updates until the discussion group receives the
// automatic forward of post, or the discussion timeout passes.
func (m *BotMessenger) DiscussionMessage(ctx context.Context, channel *Channel, post Message) (Message, error) {
	deadline := time.Now().Add(m.discussionTimeout)

	for polls := 1; time.Now().Before(deadline); polls++ {
		updates, err := call(ctx, m, "getUpdates", retry.DefaultRetryIf, func() ([]tgbotapi.Update, error) {
			m.mu.Lock()
			cfg := tgbotapi.NewUpdate(m.offset)
			m.mu.Unlock()
			cfg.Timeout = m.pollTimeout
			cfg.AllowedUpdates = []string{"message"}
			return m.bot.GetUpdates(cfg)
		})
		if err != nil {
			return Message{}, err
		}

		for _, update := range updates {
			m.mu.Lock()
			if update.UpdateID >= m.offset {
				m.offset = update.UpdateID + 1
			}
			m.mu.Unlock()

			msg := update.Message
			if msg == nil || !msg.IsAutomaticForward || msg.Chat == nil {
				continue
			}
			if msg.Chat.ID == channel.Discussion.ID && msg.ForwardFromMessageID == post.ID {
				return convert(*msg), nil
			}
		}

		if len(updates) == 0 {
			if err := retry.Wait(ctx, m.idle.NextDelay(polls)); err != nil {
				return Message{}, err
			}
		}
	}

	return Message{}, fmt.Errorf("%w: post %d after %s", ErrDiscussionMiss, post.ID, m.discussionTimeout)
}

// Close ends the session. Further calls fail with ErrClosed.
func (m *BotMessenger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if c, ok := m.bot.Client.(*http.Client); ok {
		c.CloseIdleConnections()
	}
	m.logger.Info("Messaging session closed")
	return nil
}

func (m *BotMessenger) send(ctx context.Context, method string, build func(*uploads) (tgbotapi.Chattable, error)) (Message, error) {
	msg, err := call(ctx, m, method, rateLimited, func() (tgbotapi.Message, error) {
		u := &uploads{}
		defer u.close()

		cfg, err := build(u)
		if err != nil {
			return tgbotapi.Message{}, &errs.Error{Type: errs.ErrorTypeUnknown, Message: "failed to open attachment", Err: err}
		}
		return m.bot.Send(cfg)
	})
	if err != nil {
		return Message{}, err
	}
	return convert(msg), nil
}

// rateLimited retries only a 429. Any other failure of a send may have been
// delivered already.
func rateLimited(err error) bool {
	return errs.IsType(err, errs.ErrorTypeRateLimit)
}

// call runs one API request under the rate limit, retrying the failures
// retryIf accepts.
func call[T any](ctx context.Context, m *BotMessenger, method string, retryIf func(error) bool, op func() (T, error)) (T, error) {
	var zero T
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return zero, ErrClosed
	}

	return retry.DoWithResult(func() (T, error) {
		if err := m.limiter.Wait(ctx); err != nil {
			return zero, err
		}
		start := time.Now()
		res, err := op()
		if err != nil {
			err = translate(err)
			m.logger.WithError(err).WarnWithFields("Bot API call failed", map[string]interface{}{
				"method":   method,
				"duration": time.Since(start).String(),
			})
			return zero, err
		}
		m.logger.DebugWithFields("Bot API call", map[string]interface{}{
			"method":   method,
			"duration": time.Since(start).String(),
		})
		return res, nil
	}, &retry.Config{
		MaxAttempts: m.maxAttempts,
		Backoff:     m.backoff,
		RetryIf:     retryIf,
		Context:     ctx,
		Logger:      m.logger,
	})
}

func convert(msg tgbotapi.Message) Message {
	out := Message{ID: msg.MessageID}
	if msg.Chat != nil {
		out.ChatID = msg.Chat.ID
	}
	return out
}

// translate maps Bot API failures onto typed errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var typed *errs.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return &errs.Error{Type: errs.ErrorTypeNetwork, Message: err.Error(), Err: err}
	}

	e := &errs.Error{Type: errs.ErrorTypeUnknown, Message: apiErr.Message, Code: apiErr.Code, Err: err}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		e.Type = errs.ErrorTypeRateLimit
		e.RetryAfter = time.Duration(apiErr.RetryAfter) * time.Second
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		e.Type = errs.ErrorTypeAuth
	case apiErr.Code == http.StatusNotFound:
		e.Type = errs.ErrorTypeNotFound
	case apiErr.Code >= 500:
		e.Type = errs.ErrorTypeServerError
	}
	return e
}
