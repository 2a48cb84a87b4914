// Package hclparams loads parameter sets from HCL declarations on disk.
//
// A params file holds one or more params blocks:
//
//	params "baseline" {
//	  overwrite = false
//	  ignore    = ["workers"]
//	  values = {
//	    learning_rate = 0.01
//	    epochs        = 10
//	  }
//	}
//
// Each block becomes one parameter set: values feed the fingerprint, ignore
// lists fields excluded from hashing, and overwrite requests recomputation
// for every stage touching the set's records.
package hclparams
