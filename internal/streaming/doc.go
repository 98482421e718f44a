/*
Package streaming relays recording playback from remote storage to the UI.

A slow or departed client must not pin an upstream download open, so every
proxied body is copied through a Writer that bounds each write, detects
idle connections and stops when the request context ends.

# Usage

	dl, err := store.Download(ctx, token, remoteID, r.Header.Get("Range"))
	if err != nil {
		// map to an HTTP status
	}
	n, err := streaming.Proxy(r.Context(), w, dl, streaming.DefaultConfig())
	if err != nil && !errors.Is(err, streaming.ErrClientGone) {
		logging.Warn("playback stream failed after %d bytes: %v", n, err)
	}

Proxy answers 206 with the upstream Content-Range when a range was honoured
and 200 otherwise.

# Errors

ErrWriteTimeout, ErrClientGone and ErrStreamCanceled are sentinels for
errors.Is. ErrClientGone is not a server failure.
*/
package streaming
