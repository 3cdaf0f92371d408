// Package tasks orchestrates song downloads with real-time progress reporting.
//
// # Core Operations
//
// [Downloader] owns the backlog of submitted songs and moves each one through the pipeline:
//
//  1. [Downloader.Add] : Accept a URL
//     - Detects the provider from the hostname
//     - Expands YouTube playlists and channels into one song per video
//     - Skips URLs already waiting in the same folder
//
//  2. [Downloader.ProcessQueue] : Classify every song and act on it
//     - Dispatches fresh songs to their provider lane
//     - Sends downloaded songs to the transcode lane
//     - Moves failed songs to the back of the backlog, or evicts them to the failed list
//     - Retires finished songs to the history
//
//  3. [Downloader.Seed] : Re-submit the URLs left in the recovery file by a previous run
//
// # Lanes
//
// Every provider gets its own [Lane], and all transcoding shares one more. A lane runs at most one
// song at a time and triggers a classification pass whenever it finishes one.
//
// # Transfers
//
// Downloads append to a raw file and resume from its current length with a ranged request. A transfer
// that receives no data within the stall timeout is abandoned and retried later.
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [Update] struct carries the kind of event, a snapshot of the song it concerns, and a message.
// Updates use select with default to prevent blocking.
package tasks
