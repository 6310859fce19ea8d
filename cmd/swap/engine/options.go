package engine

import (
	"log/slog"
	"time"

	"github.com/gigurra/trackswap/cmd/swap/playback"
	"github.com/gigurra/trackswap/cmd/swap/settings"
)

const (
	DefaultSilenceTrackID   = "none"
	DefaultWeatherTrackID   = "rain"
	DefaultSilenceWindow    = 400 * time.Millisecond
	DefaultRepeatWindow     = 900 * time.Millisecond
	DefaultWeatherLogWindow = 2 * time.Second
)

// SettingsSource supplies the current user settings. It is read on every
// decision.
type SettingsSource interface {
	Current() *settings.Settings
}

type Options struct {
	// SilenceTrackID is the host's "no music" cue.
	SilenceTrackID string
	// WeatherTrackID is the ambient weather cue that must not interrupt a
	// sequence's custom music.
	WeatherTrackID string

	SilenceWindow    time.Duration
	RepeatWindow     time.Duration
	WeatherLogWindow time.Duration

	Backend  playback.Backend
	Playback playback.Options
	Settings SettingsSource

	Rand   playback.Rand
	Now    func() time.Time
	Logger *slog.Logger
	// Level, when set, follows the EnableDebugLogging setting.
	Level *slog.LevelVar
}

type Option func(*Options)

func WithBackend(b playback.Backend) Option {
	return func(o *Options) { o.Backend = b }
}

func WithSettings(s SettingsSource) Option {
	return func(o *Options) { o.Settings = s }
}

func WithLogger(log *slog.Logger, level *slog.LevelVar) Option {
	return func(o *Options) {
		o.Logger = log
		o.Level = level
	}
}

// WithRand sets the random source used for asset picks and native rolls.
func WithRand(r playback.Rand) Option {
	return func(o *Options) { o.Rand = r }
}

func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

// WithPlayback overrides the playback manager options. Rand, Now and Logger
// are filled from the engine options when unset.
func WithPlayback(p playback.Options) Option {
	return func(o *Options) { o.Playback = p }
}

func defaultOptions() Options {
	return Options{
		SilenceTrackID:   DefaultSilenceTrackID,
		WeatherTrackID:   DefaultWeatherTrackID,
		SilenceWindow:    DefaultSilenceWindow,
		RepeatWindow:     DefaultRepeatWindow,
		WeatherLogWindow: DefaultWeatherLogWindow,
	}
}
