// Package config holds the scan configuration, the .xssweep site file and
// the loaders for cookie and word-list files.
package config
