package telegram

import (
	"context"
	"fmt"
	"sync"
)

// Call records one request made to a FakeMessenger.
type Call struct {
	Method  string
	ChatID  int64
	ReplyTo int
	Kind    MediaKind
	Files   []File
	Caption string
}

// FakeMessenger is an in-memory Messenger for tests. Message IDs are
// assigned sequentially per chat starting at 100.
type FakeMessenger struct {
	mu     sync.Mutex
	nextID map[int64]int

	Channels map[int64]*Channel
	Calls    []Call
	Closed   bool

	// FailOn makes the named method fail with FailErr.
	FailOn  string
	FailErr error
}

// NewFakeMessenger creates a fake that knows the given channels.
func NewFakeMessenger(channels ...*Channel) *FakeMessenger {
	f := &FakeMessenger{nextID: map[int64]int{}, Channels: map[int64]*Channel{}}
	for _, c := range channels {
		f.Channels[c.ID] = c
	}
	return f
}

// CallsTo returns the recorded calls of one method.
func (f *FakeMessenger) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeMessenger) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Closed {
		return ErrClosed
	}
	f.Calls = append(f.Calls, c)
	if f.FailOn == c.Method {
		return f.FailErr
	}
	return nil
}

func (f *FakeMessenger) next(chatID int64) Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.nextID[chatID]
	if !ok {
		id = 100
	}
	f.nextID[chatID] = id + 1
	return Message{ID: id, ChatID: chatID}
}

func (f *FakeMessenger) ResolveChannel(ctx context.Context, id int64) (*Channel, error) {
	if err := f.record(Call{Method: "ResolveChannel", ChatID: id}); err != nil {
		return nil, err
	}
	c, ok := f.Channels[id]
	if !ok {
		return nil, fmt.Errorf("chat %d: %w", id, ErrNotChannel)
	}
	if c.Discussion.ID == 0 {
		return nil, ErrNoDiscussion
	}
	return c, nil
}

func (f *FakeMessenger) SendPhoto(ctx context.Context, chatID int64, photo File, caption string) (Message, error) {
	if err := f.record(Call{Method: "SendPhoto", ChatID: chatID, Files: []File{photo}, Caption: caption}); err != nil {
		return Message{}, err
	}
	return f.next(chatID), nil
}

func (f *FakeMessenger) DiscussionMessage(ctx context.Context, channel *Channel, post Message) (Message, error) {
	if err := f.record(Call{Method: "DiscussionMessage", ChatID: channel.Discussion.ID, ReplyTo: post.ID}); err != nil {
		return Message{}, err
	}
	return f.next(channel.Discussion.ID), nil
}

func (f *FakeMessenger) ReplyPhoto(ctx context.Context, to Message, photo File) (Message, error) {
	if err := f.record(Call{Method: "ReplyPhoto", ChatID: to.ChatID, ReplyTo: to.ID, Files: []File{photo}}); err != nil {
		return Message{}, err
	}
	return f.next(to.ChatID), nil
}

func (f *FakeMessenger) ReplyDocument(ctx context.Context, to Message, doc File, progress Progress) (Message, error) {
	if err := f.record(Call{Method: "ReplyDocument", ChatID: to.ChatID, ReplyTo: to.ID, Files: []File{doc}}); err != nil {
		return Message{}, err
	}
	if progress != nil {
		progress(doc.Name, 50)
		progress(doc.Name, 100)
	}
	return f.next(to.ChatID), nil
}

func (f *FakeMessenger) ReplyGroup(ctx context.Context, to Message, kind MediaKind, files []File, progress Progress) ([]Message, error) {
	if len(files) < 2 || len(files) > MaxDocumentGroup {
		return nil, fmt.Errorf("%w: got %d", ErrGroupSize, len(files))
	}
	if err := f.record(Call{Method: "ReplyGroup", ChatID: to.ChatID, ReplyTo: to.ID, Kind: kind, Files: files}); err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(files))
	for _, file := range files {
		if progress != nil && kind == KindDocument {
			progress(file.Name, 100)
		}
		out = append(out, f.next(to.ChatID))
	}
	return out, nil
}

func (f *FakeMessenger) EditCaption(ctx context.Context, msg Message, caption string) error {
	return f.record(Call{Method: "EditCaption", ChatID: msg.ChatID, ReplyTo: msg.ID, Caption: caption})
}

func (f *FakeMessenger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
