// Package database stores scan results in SQLite.
//
// ScanDB keeps every scan as a JSON report together with flattened page and
// finding rows, so the history of a target can be listed and compared
// without decoding whole reports. The driver is modernc.org/sqlite, which
// needs no cgo.
package database
