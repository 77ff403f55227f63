// Package audio is an umbrella for the audio sub-packages:
//
//   - pcm: 16-bit little-endian PCM formats, byte/duration math, and
//     float32 to int16 conversion for the capture path
//   - resampler: streaming sample-rate conversion for file-backed
//     microphone input
package audio
