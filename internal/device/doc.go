// Package device defines the transport-facing contract of the weather station engine.
//
// The engine never talks to a radio stack directly. Instead a backend provides:
//   - a Connector that finds, dials and discovers one peripheral
//   - a Link exposing the discovered characteristic Handles
//   - a Transport that accepts asynchronous read, write and subscribe calls
//   - one ordered stream of Events carrying completions, notifications and link loss
//
// The package also carries the structured errors shared by all layers.
package device
