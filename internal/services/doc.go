// Package services contains the provider adapters the download queue drives.
//
// # Adapters
//
// An [Adapter] resolves one URL to display metadata plus a stream descriptor, then
// opens that stream at a byte offset so partial downloads can resume:
//
//   - [YouTubeService] : video metadata and audio-only streams via github.com/kkdai/youtube/v2.
//     Also implements [PlaylistResolver] for /playlist and /channel links.
//   - [SoundCloudService] : api-v2 resolve plus the progressive MP3 transcoding, with the
//     client id scraped from soundcloud.com when none is configured
//
// # Search
//
// [YouTubeMusicService] implements [Searcher] against the music.youtube.com search
// endpoint, returning songs only.
//
// # Transcoding
//
// [FFmpeg] implements [Transcoder]. When the binary cannot be found it returns
// shared.ErrEngineMissing, and [FFmpeg.Install] fetches and unpacks a static build.
//
// Adapters never record failure on a song themselves. They return errors, and
// wrap shared.ErrUnavailable when retrying cannot help.
package services
