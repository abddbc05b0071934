// Package pipeline runs a mirror as a sequence of steps.
//
// A run moves through extraction, persistence and history recording. Each
// stage is a Step that receives the shared *model.Run and fills in its part.
// The pipeline stops on the first failing step and records the error on the
// run. Deferred steps, such as history recording, run afterwards regardless
// of the outcome.
package pipeline
