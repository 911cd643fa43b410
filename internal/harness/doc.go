// Package harness runs race-condition scenarios under the reproducer.
//
// A scenario names a few goroutines and the events each one reports, in
// order. The harness starts one goroutine per thread every iteration and lets
// the scheduler enumerate the interleavings, or replay one of them.
//
// # Scenario Format
//
// Scenarios are YAML or CUE files with the following structure:
//
//	name: two-threads
//	description: "Two goroutines, three events each"
//	threads:
//	  - name: A
//	    events: [A1, A2, A3]
//	  - name: B
//	    events: [B1, B2, B3]
//	expect:
//	  leaves: 20
//	  contains: ["B1|A1|A2|B2|A3|B3"]
//	repro: ""          # set to replay one sequence instead of exploring
//	max_iterations: 0  # zero means unlimited
//
// YAML is decoded strictly: unknown fields are errors. CUE files are unified
// with the embedded #Scenario schema, which closes the struct the same way.
//
// # Expectations
//
//   - leaves: number of distinct interleavings; defaults to the multinomial
//     count of the thread lengths, with a bracketed pair counted once
//   - contains: repro strings that must have been explored
//
// # Journal
//
// WithJournal records every run, iteration and explored path in a store, so
// the repro string of a failed iteration can be found and replayed later.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/two_threads.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := harness.NewRunner().Run(ctx, scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
