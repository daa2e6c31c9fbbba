package audio

// Track is one queued media item. It is never modified after being enqueued.
type Track struct {
	Title     string
	SourceRef string

	// RequestedBy is the user ID that queued the track.
	RequestedBy string
	// ChannelID is the text channel the request came from; announcements go there.
	ChannelID string
}

// VoiceTarget identifies the voice channel a session renders into.
type VoiceTarget struct {
	GuildID   string
	ChannelID string
}
