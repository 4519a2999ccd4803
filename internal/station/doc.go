// Package station implements the weather station protocol engine.
//
// A Session serialises reads, writes and notification subscriptions into a single
// in-flight operation, routes transport completions back to the procedure that issued
// them, and drives the bulk record fetch that walks the station's record cursor.
// A Client binds a Session to a device.Connector for real connections.
package station
