// Package slackdir mirrors channel and user metadata from a Slack
// workspace into the store. It never reads message history.
package slackdir

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"

	"github.com/wesm/teampulse/internal/db"
)

const pageSize = 200

// Client is the subset of the Slack Web API used here.
// *slack.Client satisfies it.
type Client interface {
	GetConversationsContext(
		ctx context.Context, params *slack.GetConversationsParameters,
	) ([]slack.Channel, string, error)
	GetUsersInConversationContext(
		ctx context.Context, params *slack.GetUsersInConversationParameters,
	) ([]string, string, error)
	GetUsersContext(
		ctx context.Context, options ...slack.GetUsersOption,
	) ([]slack.User, error)
}

// Store receives the mirrored directory.
type Store interface {
	UpsertChannels(chs []db.Channel) error
	UpsertUsers(users []db.User) error
}

// Directory syncs Slack metadata into a Store.
type Directory struct {
	client Client
	store  Store
}

// Result counts what one sync wrote.
type Result struct {
	Channels int `json:"channels"`
	Users    int `json:"users"`
}

// New returns a Directory backed by a Slack bot token.
func New(token string, store Store) (*Directory, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("slack bot token is not configured")
	}
	return NewWithClient(slack.New(token), store), nil
}

// NewWithClient returns a Directory using an existing client.
func NewWithClient(client Client, store Store) *Directory {
	return &Directory{client: client, store: store}
}

// Sync lists public channels with their members and all
// workspace users, and upserts them. Archived channels are stored
// without fetching membership.
func (d *Directory) Sync(ctx context.Context) (Result, error) {
	channels, err := d.channels(ctx)
	if err != nil {
		return Result{}, err
	}
	users, err := d.users(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := d.store.UpsertUsers(users); err != nil {
		return Result{}, fmt.Errorf("storing users: %w", err)
	}
	if err := d.store.UpsertChannels(channels); err != nil {
		return Result{}, fmt.Errorf("storing channels: %w", err)
	}
	log.Printf(
		"slack directory: %d channel(s), %d user(s)",
		len(channels), len(users),
	)
	return Result{Channels: len(channels), Users: len(users)}, nil
}

func (d *Directory) channels(ctx context.Context) ([]db.Channel, error) {
	var out []db.Channel
	cursor := ""
	for {
		page, next, err := d.client.GetConversationsContext(ctx,
			&slack.GetConversationsParameters{
				Cursor: cursor,
				Limit:  pageSize,
				Types:  []string{"public_channel"},
			})
		if err != nil {
			return nil, fmt.Errorf("listing slack channels: %w", err)
		}
		for _, sc := range page {
			ch := db.Channel{
				ID:         sc.ID,
				Name:       sc.Name,
				Topic:      sc.Topic.Value,
				IsPrivate:  sc.IsPrivate,
				IsArchived: sc.IsArchived,
			}
			if !sc.IsArchived {
				members, err := d.members(ctx, sc.ID)
				if err != nil {
					return nil, err
				}
				ch.MemberIDs = members
			}
			out = append(out, ch)
		}
		if next == "" {
			return out, nil
		}
		cursor = next
	}
}

func (d *Directory) members(
	ctx context.Context, channelID string,
) ([]string, error) {
	members := []string{}
	cursor := ""
	for {
		page, next, err := d.client.GetUsersInConversationContext(ctx,
			&slack.GetUsersInConversationParameters{
				ChannelID: channelID,
				Cursor:    cursor,
				Limit:     pageSize,
			})
		if err != nil {
			return nil, fmt.Errorf(
				"listing members of %s: %w", channelID, err,
			)
		}
		members = append(members, page...)
		if next == "" {
			return members, nil
		}
		cursor = next
	}
}

func (d *Directory) users(ctx context.Context) ([]db.User, error) {
	sus, err := d.client.GetUsersContext(ctx,
		slack.GetUsersOptionLimit(pageSize))
	if err != nil {
		return nil, fmt.Errorf("listing slack users: %w", err)
	}
	out := make([]db.User, 0, len(sus))
	for _, su := range sus {
		display := su.Profile.DisplayName
		if display == "" {
			display = su.RealName
		}
		out = append(out, db.User{
			ID:          su.ID,
			Username:    su.Name,
			DisplayName: display,
			IsBot:       su.IsBot,
			Deleted:     su.Deleted,
		})
	}
	return out, nil
}
