// Package telegram publishes posts to a Telegram channel and its linked
// discussion group through the Bot API.
//
// The bot token is the whole session. A channel post is located in the
// discussion group by polling updates for its automatic forward, so the bot
// must be a member of the group with privacy mode disabled.
package telegram
