// Package queue provides a bounded FIFO used for the Telegram
// inbox/outbox: producers never block, a full queue drops the oldest
// write path (the network receiver) rather than stalling it.
package queue
