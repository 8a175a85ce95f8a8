// Package realtime translates between realtime API events and the local
// playback protocol.
package realtime

const (
	EventAudioDelta    = "response.audio.delta"
	EventAudioDone     = "response.audio.done"
	EventResponseStart = "response.created"
	EventSpeechStarted = "input_audio_buffer.speech_started"
	EventError         = "error"

	EventAppend        = "input_audio_buffer.append"
	EventTruncate      = "conversation.item.truncate"
	EventCancel        = "response.cancel"
	EventSessionUpdate = "session.update"
)

type audioDelta struct {
	Type   string `json:"type"`
	ItemID string `json:"item_id"`
	Delta  string `json:"delta"`
}

type audioDone struct {
	Type   string `json:"type"`
	ItemID string `json:"item_id"`
}

type errorEvent struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type appendEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type truncateEvent struct {
	Type         string `json:"type"`
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMS   int64  `json:"audio_end_ms"`
}

type cancelEvent struct {
	Type string `json:"type"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`
}

type sessionConfig struct {
	InputAudioFormat  string         `json:"input_audio_format"`
	OutputAudioFormat string         `json:"output_audio_format"`
	TurnDetection     *turnDetection `json:"turn_detection,omitempty"`
}

type sessionUpdate struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}
