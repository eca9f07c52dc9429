// Package worker runs flows and segment traversals in the background.
//
// A Worker consumes requests from a task queue and hands them to an engine:
// a run-flow request becomes Engine.Run, an execute-segment request becomes
// Engine.Execute. Callers enqueue with EnqueueFlow, EnqueueFlowAt or
// EnqueueSegment and get back a request ID; once ProcessOne has handled the
// request, Outcome(requestID) tells which run it produced and how it ended.
// The run itself is then available through Engine.GetRun.
//
// Workers hold no flow state of their own. Several workers can share one
// queue and one engine; each request is processed exactly once.
//
// Most applications use taskflow.LocalRunner, which wires an engine, a queue
// and a worker together and runs ProcessOne in a pool of goroutines.
package worker
