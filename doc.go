// Package wavescope is an interactive terminal client for inspecting,
// editing, and visualizing binary payloads held in a NATS JetStream-backed
// store. Values live in a KV bucket; append-only waveform telemetry lives in
// JetStream streams. The core engine decodes raw byte payloads into numeric
// sample series, maintains an interactive pan/zoom plot view with optional
// frequency-domain analysis, and runs background listener and generator
// tasks that exchange data with the store without ever blocking the UI.
package wavescope
