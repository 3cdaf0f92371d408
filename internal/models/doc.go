// Package models defines the domain entities tracked by the download queue.
//
//   - [Song] : one track's end-to-end unit of work, moving through the [State] machine
//     Fresh → Queued → Downloading → Downloaded → QueuedTranscode → Transcoding → Processed,
//     with Failed reachable from both active phases
//   - [SongView] : an immutable copy of a Song used for classification and display
//   - [Track] : a search result that can be submitted as a Song
//   - [Provider] : where a URL's audio comes from
//
// Song fields are only reachable through methods guarded by the Song's own mutex,
// so download and transcode workers can update a Song while the queue reads it.
package models
