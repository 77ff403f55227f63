// Package coach implements the live coaching session: one bidirectional
// streaming connection to a coaching model carrying microphone audio,
// sampled camera frames with pose landmarks, and physiological telemetry,
// with gapless playback of the model's spoken replies.
//
// # Session lifecycle
//
// A Session moves through Idle -> Preparing -> Connecting -> Active and
// terminates in Ended or Error; a new Start is allowed from Idle, Ended or
// Error. Stop is the single cancellation entry point, callable from any
// state any number of times; every acquired resource (media tracks,
// transport handle, tickers, scheduled playback) is released on every exit
// path.
//
//	sess := coach.NewSession(coach.Config{
//	    Media:     &media.SyntheticProvider{},
//	    Connector: &coach.GeminiConnector{Client: client},
//	    Pose:      pose.Disabled{},
//	    Player:    coach.NewWriterPlayer(io.Discard),
//	})
//	if err := sess.Start(ctx); err != nil {
//	    return err
//	}
//	defer sess.Stop()
//
// # Transports
//
// The Transport interface abstracts the streaming connection behind typed
// server events. Two implementations ship: GeminiConnector (Gemini Live
// over google.golang.org/genai) and WSConnector (a JSON-over-WebSocket
// protocol for the loopback development server).
package coach
