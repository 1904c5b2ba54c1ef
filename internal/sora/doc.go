// Package sora talks to the remote video generation pipeline. Submission
// and status polling are plain JSON POSTs; the pipeline's known minimum
// latency makes the poll schedule a caller concern.
package sora
