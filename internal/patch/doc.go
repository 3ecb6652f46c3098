// Package patch loads the declarative HCL description of a DSP node graph.
//
// A patch is one or more .hcl files declaring an optional scheduler settings
// block and one block per DSP node:
//
//	patch {
//	  threads  = 4
//	  strategy = "wait"
//	}
//
//	node "lfo" {
//	  work_us = 5
//	}
//
//	node "osc1" {
//	  after   = ["lfo"]
//	  work_us = 20
//	  gain    = 0.7
//	}
//
// The loader only parses and validates the patch's own structure (syntax,
// node names and patch blocks duplicated across all loaded files, attribute
// values); cross-node wiring, cycle detection and
// queue construction belong to the builder package.
package patch
