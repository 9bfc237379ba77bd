package workflow

import (
	"context"
	"errors"
	"fmt"

	"workshopcast/pkg/auth"
	"workshopcast/pkg/config"
	errs "workshopcast/pkg/errors"
	"workshopcast/pkg/logger"
	"workshopcast/pkg/telegram"
)

// Connector opens one messaging session.
type Connector interface {
	Connect(ctx context.Context) (telegram.Messenger, error)
}

// DialFunc opens a session with a token.
type DialFunc func(ctx context.Context, token string) (telegram.Messenger, error)

// SessionConnector opens Bot API sessions with the stored token, asking
// for one and storing it on first use.
type SessionConnector struct {
	sessions *auth.Manager
	name     string
	prompt   Prompter
	dial     DialFunc
	logger   logger.Logger
}

// NewSessionConnector creates a connector for the configured session name.
func NewSessionConnector(cfg config.TelegramConfig, sessions *auth.Manager, prompt Prompter, log logger.Logger) *SessionConnector {
	if log == nil {
		log = logger.GetLogger()
	}
	return &SessionConnector{
		sessions: sessions,
		name:     cfg.SessionName,
		prompt:   prompt,
		dial: func(ctx context.Context, token string) (telegram.Messenger, error) {
			m, err := telegram.Connect(ctx, cfg, token, log)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		logger: log.WithField("session", cfg.SessionName),
	}
}

// WithDial replaces how sessions are opened.
func (c *SessionConnector) WithDial(dial DialFunc) *SessionConnector {
	c.dial = dial
	return c
}

// Connect opens a session. A stored token that is rejected is an error:
// the session must be removed before a new token is accepted.
func (c *SessionConnector) Connect(ctx context.Context) (telegram.Messenger, error) {
	if session, err := c.sessions.Retrieve(c.name); err == nil {
		m, err := c.dial(ctx, session.Token)
		if err != nil {
			if errs.IsType(err, errs.ErrorTypeAuth) {
				return nil, fmt.Errorf("stored token for session %q was rejected, run 'workshopcast auth logout' and try again: %w", c.name, err)
			}
			return nil, err
		}
		return m, nil
	}

	for {
		token, err := c.prompt.Secret("Enter your bot token: ")
		if err != nil {
			return nil, err
		}
		if token == "" {
			c.prompt.Say("\nError. Try again.\n")
			continue
		}

		m, err := c.dial(ctx, token)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			c.logger.WithError(err).Warn("Token rejected")
			c.prompt.Say("\nError. Try again.\n")
			continue
		}

		if err := c.sessions.Store(&auth.Session{Name: c.name, Token: token}); err != nil {
			c.logger.WithError(err).Warn("Could not store session")
		}
		return m, nil
	}
}
