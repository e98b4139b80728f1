// Package service keeps a patient vector index consistent with the patient
// source of record and answers similarity queries against it.
//
// A process holds a single Service. Sync cycles never overlap; queries run
// concurrently with each other and with an in-flight cycle.
package service
