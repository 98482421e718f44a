// Package recorder owns the recording session and its state machine.
//
// A Machine holds exactly one Session at a time and moves it through the
// phases
//
//	setup -> countdown -> recording <-> paused -> preview -> processing -> complete | error
//
// Every transition goes through a Machine method under one mutex. Work that
// may block (device prompts, encoder shutdown, network upload) runs with the
// mutex released and re-checks that the session it started with is still
// current before applying its result.
//
// Live resources (capture tracks, compositor, encoder and the countdown and
// duration timers) belong to the Session and are released by a single
// teardown guarded by sync.Once, so stop, delete and screen-share revocation
// can race without releasing anything twice.
//
// Upload failures are classified by Classify into the recovery controls
// offered in the error phase: re-authenticate for expired credentials,
// retry once a disabled service is enabled, and start over otherwise.
package recorder
