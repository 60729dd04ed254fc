// Package poll implements a readiness-based event loop, multiplexing many
// event sources onto a single goroutine.
//
// # Architecture
//
// A [Loop] owns a [Poll], which wraps the platform-native readiness
// mechanism, and a set of sources implementing [EventSource]. Each source is
// given a [TokenFactory] on registration, which it uses to mint a [Token] per
// file descriptor or timer it registers. When the poller reports readiness,
// the loop routes the event back to the owning source, by token, and calls
// [EventSource.ProcessEvents]. The returned [PostAction] tells the loop
// whether to keep the source, re-register it, disable it, or remove it.
//
// I/O polling is implemented using platform-native mechanisms:
//   - Linux: epoll (wake-ups via eventfd)
//   - macOS: kqueue (wake-ups via a self-pipe)
//
// Timers are not backed by file descriptors. The [Poll] keeps a min-heap of
// deadlines, bounds its wait by the earliest one, and reports expired timers
// as events with an empty [Readiness].
//
// # Building blocks
//
//   - [Ping]/[PingSource]: a cross-goroutine wake-up.
//   - [Sender]/[Channel]: a FIFO message queue with an explicit closed signal,
//     built on a ping.
//   - [Timer]: a restartable countdown, rearmed via [TimeoutAction].
//
// # Thread Safety
//
// A [Loop], its [Poll], and all sources registered with it must only be used
// from the goroutine that dispatches the loop. The exceptions are [Ping],
// [Sender], and [LoopSignal], which may be used from any goroutine.
//
// # Usage
//
//	loop, err := poll.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Close()
//
//	sender, channel, err := poll.NewChannel[string]()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	_, err = poll.InsertSource(loop, channel, func(event poll.ChannelEvent[string]) {
//	    if event.Closed {
//	        loop.Signal().Stop()
//	        return
//	    }
//	    fmt.Println(event.Msg)
//	})
//
//	go func() {
//	    defer sender.Close()
//	    _ = sender.Send("hello")
//	}()
//
//	if err := loop.Run(context.Background(), -1, nil); err != nil {
//	    log.Fatal(err)
//	}
package poll
