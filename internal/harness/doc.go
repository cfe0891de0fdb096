// Package harness runs conformance scenarios against the engine.
//
// A scenario is a YAML file naming CUE process definitions, a list of steps
// that drive one or more process instances the way a client and its workers
// would, and assertions over the resulting record log and final state:
//
//	name: linear-order
//	description: A completed job moves the token to the end event.
//	processes: [../processes/order.cue]
//	steps:
//	  - action: create
//	    process: order
//	    as: order
//	    variables: {orderId: 7}
//	  - action: complete_job
//	    job_type: ship
//	assertions:
//	  - type: instance_completed
//	    instance: order
//
// Every scenario runs on a fresh in-memory log with a mock clock and
// sequential request ids, so its record log is identical on every run.
// RunWithGolden compares the element trace of that log with a golden file
// under testdata/golden.
package harness
