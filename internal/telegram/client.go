// Package telegram wraps gotgproto/gotd with the operations the downloader
// needs: channel resolution, oldest-first history enumeration, live message
// subscription and media transfer.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blockedby/tgdown/internal/logger"
	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/dispatcher/handlers"
	"github.com/celestix/gotgproto/dispatcher/handlers/filters"
	"github.com/celestix/gotgproto/ext"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// errors
var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrNotAChannel     = errors.New("peer is not a channel")
	ErrNoMedia         = errors.New("message has no downloadable media")
)

const (
	historyPageSize = 100
	maxDialogPages  = 50
	maxFloodRetries = 3
)

// Client wraps the gotgproto client held by Manager and provides
// rate-limited high level operations.
type Client struct {
	manager     *Manager
	rateLimiter *RateLimiter
	threads     int
	log         *logger.Logger

	mu       sync.RWMutex
	channels map[int64]*Channel
}

// NewClient creates a client using the Manager's session. threads > 1
// enables parallel part downloads.
func NewClient(manager *Manager, limiter *RateLimiter, threads int) *Client {
	if limiter == nil {
		limiter = DefaultRateLimiter()
	}
	if threads < 1 {
		threads = 1
	}
	return &Client{
		manager:     manager,
		rateLimiter: limiter,
		threads:     threads,
		log:         logger.Get(),
		channels:    make(map[int64]*Channel),
	}
}

// Close disconnects the session.
func (c *Client) Close() {
	if c.manager != nil {
		c.manager.Stop()
	}
}

func (c *Client) getProto() (*gotgproto.Client, error) {
	if c.manager == nil {
		return nil, ErrNotAuthorized
	}
	proto := c.manager.GetClient()
	if proto == nil {
		return nil, ErrNotAuthorized
	}
	return proto, nil
}

// API returns the raw tg.Client for direct API calls.
func (c *Client) API() (*tg.Client, error) {
	proto, err := c.getProto()
	if err != nil {
		return nil, err
	}
	return proto.API(), nil
}

// call runs fn behind the rate limiter, retrying on FLOOD_WAIT.
func (c *Client) call(ctx context.Context, fn func(api *tg.Client) error) error {
	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		api, err := c.API()
		if err != nil {
			return err
		}

		err = fn(api)
		if err == nil {
			return nil
		}

		if d, ok := tgerr.AsFloodWait(err); ok && attempt < maxFloodRetries {
			c.log.Warn().Dur("wait", d).Int("attempt", attempt+1).Msg("telegram: FLOOD_WAIT, backing off")
			c.rateLimiter.SetFloodWait(d)
			continue
		}
		return err
	}
}

// channelRef is a parsed channel identifier: either a username or a numeric id.
type channelRef struct {
	Username string
	ID       int64
}

// parseChannelRef accepts "@name", "name", "t.me/name" links and numeric
// ids, including the "-100" prefixed bot-API form.
func parseChannelRef(ident string) (channelRef, error) {
	s := strings.TrimSpace(ident)
	for _, prefix := range []string{"https://", "http://"} {
		s = strings.TrimPrefix(s, prefix)
	}
	for _, prefix := range []string{"t.me/", "telegram.me/", "@"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimSuffix(s, "/")

	if s == "" {
		return channelRef{}, fmt.Errorf("empty channel identifier")
	}

	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if strings.HasPrefix(s, "-100") {
			id, _ = strconv.ParseInt(strings.TrimPrefix(s, "-100"), 10, 64)
		} else if id < 0 {
			id = -id
		}
		if id == 0 {
			return channelRef{}, fmt.Errorf("invalid channel id %q", ident)
		}
		return channelRef{ID: id}, nil
	}

	return channelRef{Username: s}, nil
}

// ResolveChannel resolves a username, t.me link or numeric channel id.
// Numeric ids are looked up among the account's dialogs, so the account
// must be a member of the channel.
func (c *Client) ResolveChannel(ctx context.Context, ident string) (*Channel, error) {
	ref, err := parseChannelRef(ident)
	if err != nil {
		return nil, err
	}

	var ch *Channel
	if ref.Username != "" {
		ch, err = c.resolveUsername(ctx, ref.Username)
	} else {
		ch, err = c.resolveByID(ctx, ref.ID)
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.channels[ch.ID] = ch
	c.mu.Unlock()

	c.log.Info().Int64("channel_id", ch.ID).Str("title", ch.Title).Msg("telegram: channel resolved")
	return ch, nil
}

func (c *Client) resolveUsername(ctx context.Context, username string) (*Channel, error) {
	var resolved *tg.ContactsResolvedPeer
	err := c.call(ctx, func(api *tg.Client) (err error) {
		resolved, err = api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
			Username: username,
		})
		return err
	})
	if err != nil {
		if tgerr.Is(err, "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID") {
			return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, username)
		}
		return nil, fmt.Errorf("resolve username %s: %w", username, err)
	}

	for _, chat := range resolved.Chats {
		if ch, ok := chat.(*tg.Channel); ok {
			return &Channel{
				ID:         ch.ID,
				AccessHash: ch.AccessHash,
				Username:   username,
				Title:      ch.Title,
			}, nil
		}
	}
	if len(resolved.Chats) == 0 && len(resolved.Users) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, username)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotAChannel, username)
}

// dated is implemented by tg.Message and tg.MessageService.
type dated interface {
	GetID() int
	GetDate() int
}

func (c *Client) resolveByID(ctx context.Context, id int64) (*Channel, error) {
	req := &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      100,
	}

	for page := 0; page < maxDialogPages; page++ {
		var res tg.MessagesDialogsClass
		err := c.call(ctx, func(api *tg.Client) (err error) {
			res, err = api.MessagesGetDialogs(ctx, req)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("get dialogs: %w", err)
		}

		var (
			dialogs  []tg.DialogClass
			chats    []tg.ChatClass
			messages []tg.MessageClass
		)
		switch d := res.(type) {
		case *tg.MessagesDialogs:
			dialogs, chats, messages = d.Dialogs, d.Chats, d.Messages
		case *tg.MessagesDialogsSlice:
			dialogs, chats, messages = d.Dialogs, d.Chats, d.Messages
		default:
			return nil, fmt.Errorf("%w: %d", ErrChannelNotFound, id)
		}

		for _, chat := range chats {
			if ch, ok := chat.(*tg.Channel); ok && ch.ID == id {
				return &Channel{
					ID:         ch.ID,
					AccessHash: ch.AccessHash,
					Username:   ch.Username,
					Title:      ch.Title,
				}, nil
			}
		}

		if len(dialogs) < req.Limit || len(messages) == 0 {
			break
		}

		// continue below the oldest top message of this page
		oldest, ok := messages[len(messages)-1].(dated)
		if !ok {
			break
		}
		req.OffsetID = oldest.GetID()
		req.OffsetDate = oldest.GetDate()
	}

	return nil, fmt.Errorf("%w: %d (is the account a member?)", ErrChannelNotFound, id)
}

// ChannelTitle fetches the channel's current display title.
func (c *Client) ChannelTitle(ctx context.Context, ch *Channel) (string, error) {
	var res tg.MessagesChatsClass
	err := c.call(ctx, func(api *tg.Client) (err error) {
		res, err = api.ChannelsGetChannels(ctx, []tg.InputChannelClass{ch.InputChannel()})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("get channel: %w", err)
	}

	var chats []tg.ChatClass
	switch r := res.(type) {
	case *tg.MessagesChats:
		chats = r.Chats
	case *tg.MessagesChatsSlice:
		chats = r.Chats
	}
	for _, chat := range chats {
		if full, ok := chat.(*tg.Channel); ok && full.ID == ch.ID {
			return full.Title, nil
		}
	}
	return "", fmt.Errorf("%w: %d", ErrChannelNotFound, ch.ID)
}

// IterateHistory walks the channel history oldest-first and calls fn for
// every message. Returning an error from fn stops the walk with that error.
func (c *Client) IterateHistory(ctx context.Context, ch *Channel, filter HistoryFilter, fn func(Message) error) error {
	// with AddOffset = -limit the server returns messages with id >= offsetID
	offsetID := 1

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, raw, err := c.historyPage(ctx, ch, filter, offsetID)
		if err != nil {
			return err
		}

		sort.Slice(page, func(i, j int) bool { return page[i].ID < page[j].ID })

		next := offsetID
		for _, m := range page {
			if m.ID < offsetID {
				continue
			}
			if err := fn(m); err != nil {
				return err
			}
			if m.ID >= next {
				next = m.ID + 1
			}
		}

		if raw < historyPageSize || next == offsetID {
			return nil
		}
		offsetID = next
	}
}

func (c *Client) historyPage(ctx context.Context, ch *Channel, filter HistoryFilter, offsetID int) ([]Message, int, error) {
	var res tg.MessagesMessagesClass
	err := c.call(ctx, func(api *tg.Client) (err error) {
		if filter == HistoryPhotos {
			res, err = api.MessagesSearch(ctx, &tg.MessagesSearchRequest{
				Peer:      ch.InputPeer(),
				Filter:    &tg.InputMessagesFilterPhotos{},
				OffsetID:  offsetID,
				AddOffset: -historyPageSize,
				Limit:     historyPageSize,
			})
			return err
		}
		res, err = api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:      ch.InputPeer(),
			OffsetID:  offsetID,
			AddOffset: -historyPageSize,
			Limit:     historyPageSize,
		})
		return err
	})
	if err != nil {
		c.log.Error().Err(err).Int("offset_id", offsetID).Msg("telegram: history request failed")
		return nil, 0, fmt.Errorf("get history: %w", err)
	}

	msgs, raw := extractMessages(res, ch.ID)
	return msgs, raw, nil
}

// Subscribe delivers every new message posted to ch until ctx is done.
// fn runs on the update dispatcher goroutine, so blocking in it delays
// further updates.
func (c *Client) Subscribe(ctx context.Context, ch *Channel, fn func(Message)) error {
	proto, err := c.getProto()
	if err != nil {
		return err
	}

	proto.Dispatcher.AddHandler(handlers.NewMessage(filters.Message.All, func(_ *ext.Context, u *ext.Update) error {
		if ctx.Err() != nil {
			return nil
		}
		em := u.EffectiveMessage
		if em == nil || em.Message == nil {
			return nil
		}
		peer, ok := em.PeerID.(*tg.PeerChannel)
		if !ok || peer.ChannelID != ch.ID {
			return nil
		}
		if msg, ok := ParseMessage(em.Message, ch.ID); ok {
			fn(msg)
		}
		return nil
	}))

	c.log.Info().Int64("channel_id", ch.ID).Msg("telegram: subscribed to new messages")
	return nil
}

// Download transfers the message media into path and returns the number of
// bytes written. On failure the file at path is removed. An expired file
// reference is refreshed once by re-fetching the message.
func (c *Client) Download(ctx context.Context, msg Message, path string, progress ProgressFunc) (int64, error) {
	if msg.Media == nil || msg.Media.Location == nil {
		return 0, ErrNoMedia
	}

	n, err := c.download(ctx, msg.Media, path, progress)
	if err != nil && tgerr.Is(err, "FILE_REFERENCE_EXPIRED") {
		c.log.Debug().Int("message_id", msg.ID).Msg("telegram: file reference expired, refreshing")
		media, rerr := c.refreshMedia(ctx, msg)
		if rerr != nil {
			return 0, fmt.Errorf("refresh file reference: %w", rerr)
		}
		n, err = c.download(ctx, media, path, progress)
	}
	return n, err
}

func (c *Client) download(ctx context.Context, media *Media, path string, progress ProgressFunc) (int64, error) {
	api, err := c.API()
	if err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	w := newProgressWriter(f, media.Size, progress)
	b := downloader.NewDownloader().Download(api, media.Location)
	if c.threads > 1 {
		_, err = b.WithThreads(c.threads).Parallel(ctx, w)
	} else {
		_, err = b.Stream(ctx, w)
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("download: %w", err)
	}
	return w.Written(), nil
}

func (c *Client) refreshMedia(ctx context.Context, msg Message) (*Media, error) {
	c.mu.RLock()
	ch, ok := c.channels[msg.ChannelID]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrChannelNotFound, msg.ChannelID)
	}

	var res tg.MessagesMessagesClass
	err := c.call(ctx, func(api *tg.Client) (err error) {
		res, err = api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: ch.InputChannel(),
			ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: msg.ID}},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	msgs, _ := extractMessages(res, ch.ID)
	for _, m := range msgs {
		if m.ID == msg.ID && m.Media != nil && m.Media.Location != nil {
			return m.Media, nil
		}
	}
	return nil, ErrNoMedia
}
