// Package pipeline runs the stages of one scan in sequence.
//
// A scan crawls the target into a page set, hands the page set to the
// selected plugins and optionally stores the finished report. Each stage is
// a Step that receives the report and fills in its part. BatchProcessor
// scans several targets concurrently with one fresh pipeline per target.
package pipeline
