package stt

import "context"

// Placeholder greetings. These are a deterministic stand-in for a transcript so
// the pipeline runs end to end without a live STT service; they carry no
// detection signal of their own beyond the (duration, rms) bucket.
var placeholderGreetings = [3][2]string{
	// short greetings: quiet, loud
	{"hello", "ഹലോ, ആരാ"},
	// medium greetings
	{"നമസ്കാരം, ആരാണ് വിളിക്കുന്നത്", "hello, entha parayu"},
	// long recorded greetings
	{
		"നമസ്കാരം, ഞാൻ ഇപ്പോൾ ലഭ്യമല്ല. ബീപ് ശബ്ദത്തിന് ശേഷം സന്ദേശം രേഖപ്പെടുത്തുക",
		"hi, you have reached my voicemail. please leave a message after the beep",
	},
}

const (
	placeholderShortSeconds = 1.5
	placeholderLongSeconds  = 4.0
	placeholderLoudRMS      = 0.1
	placeholderSilenceRMS   = 0.001
)

// PlaceholderText picks a canned greeting from the duration (s) and RMS bucket.
// Silent or empty audio yields an empty string.
func PlaceholderText(duration, rms float64) string {
	if duration <= 0 || rms < placeholderSilenceRMS {
		return ""
	}

	bucket := 0
	switch {
	case duration >= placeholderLongSeconds:
		bucket = 2
	case duration >= placeholderShortSeconds:
		bucket = 1
	}

	loudness := 0
	if rms >= placeholderLoudRMS {
		loudness = 1
	}
	return placeholderGreetings[bucket][loudness]
}

// PlaceholderTranscriber always answers with PlaceholderText
type PlaceholderTranscriber struct{}

// NewPlaceholderTranscriber creates a placeholder transcriber
func NewPlaceholderTranscriber() *PlaceholderTranscriber {
	return &PlaceholderTranscriber{}
}

// Name implements Transcriber
func (PlaceholderTranscriber) Name() string {
	return "placeholder"
}

// Transcribe implements Transcriber
func (PlaceholderTranscriber) Transcribe(_ context.Context, req Request) (*Transcript, error) {
	return &Transcript{
		Text:     PlaceholderText(req.Duration, req.RMS),
		Provider: "placeholder",
		Source:   SourcePlaceholder,
	}, nil
}
