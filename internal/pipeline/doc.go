// Package pipeline turns raw device bytes into broadcastable batches.
//
// Data moves through three stages, each owned by one device connection:
//
//	bytes -> LineExtractor -> ParseSample -> Batcher -> Batch
//
// Lines that do not carry a "Pulse Width: <digits>" reading are noise and are
// dropped without error. A Batch is only produced once it holds exactly the
// configured number of samples.
package pipeline
