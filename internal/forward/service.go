// Package forward copies existing messages and files into another channel
// while preserving provenance.
package forward

import (
	"context"
	"log/slog"

	"github.com/wardline/wardline/internal/channels"
	"github.com/wardline/wardline/internal/files"
	"github.com/wardline/wardline/internal/messages"
	"github.com/wardline/wardline/internal/realtime"
)

// Broadcaster fans an event out to a channel's room. Implemented by
// realtime.Hub.
type Broadcaster interface {
	BroadcastToRoom(channelID, excludeSessionID string, event realtime.Event)
}

// Service is the forwarding coordinator.
type Service struct {
	channels    channels.Directory
	store       messages.Store
	files       files.Library
	broadcaster Broadcaster
	logger      *slog.Logger
}

// NewService creates a forwarding service.
func NewService(log *slog.Logger, directory channels.Directory, store messages.Store, library files.Library, broadcaster Broadcaster) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		channels:    directory,
		store:       store,
		files:       library,
		broadcaster: broadcaster,
		logger:      log.With(slog.String("service", "forward")),
	}
}

// ForwardMessage copies the source message into the channel owning destTag.
// The new message carries the forwarding user as author; provenance is
// recorded in fromChannel, not authorship. The copy is broadcast to the
// destination room after it is persisted.
func (s *Service) ForwardMessage(ctx context.Context, userID, messageID, destTag string) (messages.Message, error) {
	dest, err := s.channels.GetByTag(ctx, destTag)
	if err != nil {
		return messages.Message{}, err
	}
	source, err := s.store.Get(ctx, messageID)
	if err != nil {
		return messages.Message{}, err
	}

	forwarded, err := s.store.Append(ctx, messages.AppendInput{
		AuthorID:      userID,
		ChannelID:     dest.ID,
		Content:       source.Content,
		Forwarded:     true,
		FromChannelID: source.ChannelID,
	})
	if err != nil {
		return messages.Message{}, err
	}

	if event, err := realtime.NewEvent(realtime.EventMessage, forwarded); err == nil {
		s.broadcaster.BroadcastToRoom(dest.ID, "", event)
	}
	return forwarded, nil
}

// ForwardFile copies a file record into the channel owning destTag. Unlike
// message forwarding, the original uploader identity is preserved; the
// content-addressed bytes are shared rather than duplicated.
func (s *Service) ForwardFile(ctx context.Context, userID, fileID, destTag string) (files.File, error) {
	dest, err := s.channels.GetByTag(ctx, destTag)
	if err != nil {
		return files.File{}, err
	}
	copied, err := s.files.Copy(ctx, fileID, dest.ID)
	if err != nil {
		return files.File{}, err
	}
	s.logger.Info("file forwarded",
		slog.String("file_id", fileID),
		slog.String("dest_channel_id", dest.ID),
		slog.String("forwarded_by", userID),
	)

	if event, err := realtime.NewEvent(realtime.EventFile, copied); err == nil {
		s.broadcaster.BroadcastToRoom(dest.ID, "", event)
	}
	return copied, nil
}
