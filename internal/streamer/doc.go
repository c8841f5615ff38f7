// Package streamer copies a source into an FTP store one chunk at a time.
//
// Progress is reported after the transport accepts each chunk, never after a
// mere read, so the cumulative count is what the server has actually taken.
// Any read or write failure aborts the store and returns a failure.Error that
// carries the partial byte count. Cancellation is checked between chunks.
package streamer
