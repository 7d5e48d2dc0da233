// Package ffmpeg is the adapter to the ffmpeg and ffprobe binaries.
//
// builder.go assembles argument slices for every invocation the engine
// makes: stream-copy attempt, visually lossless fallback, normal tier
// encode, audio rendition, WebVTT subtitle extraction and keyframe probes.
// executor.go runs them with stdout and stderr drained concurrently so the
// child never blocks on a full pipe. errors.go classifies copy failures for
// diagnostics and hwaccel.go detects hardware H.264 encoders.
//
// Every argument slice starts with the binary path: args[0] is what gets
// executed.
package ffmpeg
