package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	errs "workshopcast/pkg/errors"
	"workshopcast/pkg/models"
	"workshopcast/pkg/telegram"
)

// Prompter is the console capability the flows need.
type Prompter interface {
	Ask(label string) (string, error)
	Secret(label string) (string, error)
	Say(msg string)
}

// Menu choices.
const (
	ChoiceFetch = iota + 1
	ChoicePublish
	ChoiceFetchAndPublish
)

var menu = []string{
	"Download & Package & Cache",
	"Create telegram post",
	"Download & Package & Upload to telegram",
}

// AskWorkshopID asks until the answer is a workshop ID or URL whose page
// exists.
func (w *Workflow) AskWorkshopID(ctx context.Context) (string, error) {
	for {
		answer, err := w.prompt.Ask("SteamID | SteamURL: ")
		if err != nil {
			return "", err
		}
		id, err := models.ParseID(answer)
		if err != nil {
			w.prompt.Say("Invalid input. Try again")
			continue
		}
		exists, err := w.checkExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			w.prompt.Say("Invalid SteamID. Try again")
			continue
		}
		return id, nil
	}
}

func (w *Workflow) checkExists(ctx context.Context, id string) (bool, error) {
	exists, err := w.steam.Exists(ctx, id)
	if errs.IsType(err, errs.ErrorTypeNotFound) {
		return false, nil
	}
	return exists, err
}

// AskChannel resolves the target channel. A channel chosen earlier in the
// run, or configured, is resolved again without asking.
func (w *Workflow) AskChannel(ctx context.Context, m telegram.Messenger) (*telegram.Channel, error) {
	if w.channelID != 0 {
		channel, err := m.ResolveChannel(ctx, w.channelID)
		if err != nil {
			return nil, fmt.Errorf("resolve channel %d: %w", w.channelID, err)
		}
		return channel, nil
	}

	for {
		answer, err := w.prompt.Ask("Telegram channel id: ")
		if err != nil {
			return nil, err
		}
		id, err := strconv.ParseInt(answer, 10, 64)
		if err != nil {
			w.prompt.Say("Invalid chat id. Try again")
			continue
		}

		channel, err := m.ResolveChannel(ctx, id)
		switch {
		case err == nil:
		case errors.Is(err, telegram.ErrNotChannel):
			w.prompt.Say("Provided id is not from a channel. Try again")
			continue
		case errors.Is(err, telegram.ErrNoDiscussion):
			w.prompt.Say("Channel doesn't have a linked chat for comments. Try again")
			continue
		case errs.IsType(err, errs.ErrorTypeAuth):
			w.prompt.Say("The bot has no access to this chat. Try again")
			continue
		case isMissingChat(err):
			w.prompt.Say("Inexistent chat id. Try again")
			continue
		default:
			return nil, err
		}

		w.prompt.Say(fmt.Sprintf("Will upload to '%s' and '%s'", channel.Title, channel.Discussion.Title))
		w.channelID = id
		return channel, nil
	}
}

func isMissingChat(err error) bool {
	var typed *errs.Error
	if !errors.As(err, &typed) {
		return false
	}
	return typed.Type == errs.ErrorTypeNotFound || typed.Code == 400
}

// Confirm asks a yes/no question. An empty answer means no.
func (w *Workflow) Confirm(question string) (bool, error) {
	for {
		answer, err := w.prompt.Ask(question + " (y/n)? ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		case "n", "no", "":
			return false, nil
		}
		w.prompt.Say("Invalid input. Try again")
	}
}

// MenuChoice shows the menu and returns a choice in 1..3. An empty answer
// picks the last entry.
func (w *Workflow) MenuChoice() (int, error) {
	for {
		for i, entry := range menu {
			w.prompt.Say(fmt.Sprintf("%d - %s", i+1, entry))
		}
		answer, err := w.prompt.Ask(fmt.Sprintf("Choose an option (default %d): ", len(menu)))
		if err != nil {
			return 0, err
		}
		if answer == "" {
			return len(menu), nil
		}
		choice, err := strconv.Atoi(answer)
		if err != nil {
			w.prompt.Say("Invalid input. Try again")
			continue
		}
		if choice < 1 || choice > len(menu) {
			w.prompt.Say("Invalid option. Try again")
			continue
		}
		return choice, nil
	}
}

// SelectItems lists the items and asks for a comma separated list of
// 1-based positions. Out of range positions are ignored, repeats are
// dropped, and any non-numeric entry re-prompts.
func (w *Workflow) SelectItems(items []*models.WorkshopItem) ([]*models.WorkshopItem, error) {
	for {
		w.prompt.Say("Found items in cache:")
		for i, item := range items {
			w.prompt.Say(fmt.Sprintf("%d - %s - %s", i+1, item.PublisherID, item.Title))
		}
		w.prompt.Say("")

		answer, err := w.prompt.Ask("Enter a comma separated (if needed) list of the items you want to upload: ")
		if err != nil {
			return nil, err
		}

		indexes, ok := parseIndexes(answer, len(items))
		if !ok {
			w.prompt.Say("Invalid input. Try again")
			continue
		}
		selected := make([]*models.WorkshopItem, 0, len(indexes))
		for _, i := range indexes {
			selected = append(selected, items[i])
		}
		return selected, nil
	}
}

func parseIndexes(answer string, n int) ([]int, bool) {
	seen := map[int]bool{}
	var out []int
	for _, field := range strings.Split(answer, ",") {
		field = strings.TrimSpace(field)
		pos, err := strconv.Atoi(field)
		if err != nil {
			return nil, false
		}
		i := pos - 1
		if i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	return out, true
}
