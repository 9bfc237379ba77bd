package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide writes step-by-step instructions for obtaining a bot token
// and preparing the target channel.
func ShowTokenGuide(w io.Writer) {
	line := strings.Repeat("=", 72)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "🤖 TELEGRAM BOT TOKEN")
	fmt.Fprintln(w, line)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Posts are published through a Telegram bot. To create one:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Open a chat with @BotFather and send /newbot")
	fmt.Fprintln(w, "2. Pick a display name and a username ending in 'bot'")
	fmt.Fprintln(w, "3. Copy the token BotFather replies with (123456789:AA...)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Then prepare the channel:")
	fmt.Fprintln(w, "   • Add the bot to the channel as an administrator with 'Post messages' and 'Edit messages'")
	fmt.Fprintln(w, "   • Link a discussion group to the channel and add the bot there as a member")
	fmt.Fprintln(w, "   • Disable privacy mode (/setprivacy) so the bot sees automatic forwards")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "⚠️  The token grants full control of the bot. Keep it private.")
	fmt.Fprintf(w, "   It can also be supplied through %s.\n", TokenEnvVar)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w)
}

// ShowQuickTokenGuide writes a condensed hint for experienced users
func ShowQuickTokenGuide(w io.Writer) {
	fmt.Fprintln(w, "\n🤖 @BotFather → /newbot → copy the token. Type 'help' for detailed instructions")
}
