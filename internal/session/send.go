package session

import (
	"context"
	"fmt"

	"github.com/deepfinance/chat-client/internal/models"
	"go.uber.org/zap"
)

// Send dispatches one user message. The steps run strictly in order:
//
//  1. append an optimistic pending entry to the store, so the send is
//     visible with zero latency;
//  2. if no thread is active, create one seeded with the content. On
//     failure the optimistic entry is removed and nothing is sent; on
//     success the new thread becomes active and the thread list is
//     refreshed (two round trips per first message, accepted);
//  3. send the message:send frame over the channel. If the channel is not
//     open the entry stays pending; there is no retry and no timeout
//     promoting it to failed. The user retries by sending again.
//
// Send blocks until the frame is written or the attempt is abandoned. It
// must be called from outside the loop goroutine.
func (s *Synchronizer) Send(ctx context.Context, content string) error {
	var (
		optimistic models.Message
		threadID   string
	)
	s.call(func() {
		optimistic = s.store.AppendOptimistic(s.activeThreadID, content)
		threadID = s.activeThreadID
	})

	if threadID == "" {
		thread, err := s.directory.CreateThread(ctx, content)
		if err != nil {
			s.logger.Error("Failed to create thread", zap.Error(err))
			s.call(func() {
				s.store.Remove(optimistic.ID)
			})
			return fmt.Errorf("create thread: %w", err)
		}

		threadID = thread.ID
		s.call(func() {
			s.activeThreadID = thread.ID
		})

		// Refresh so the thread list reflects the new thread. A refresh
		// failure is logged inside and does not abort the send.
		_ = s.RefreshThreads(ctx)
	}

	err := s.channel.Send(models.EventMessageSend, models.SendPayload{
		ThreadID: threadID,
		Content:  content,
	})
	if err != nil {
		// Known limitation: on a closed channel the optimistic entry stays
		// pending until the user re-sends manually.
		s.logger.Error("Failed to send message over channel",
			zap.Error(err),
			zap.String("thread_id", threadID))
		return err
	}
	return nil
}
