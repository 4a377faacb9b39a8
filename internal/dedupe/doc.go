// Package dedupe remembers recently appended message ids so that repeated
// deliveries of the same message within a configurable window are ignored
// instead of appended twice.
package dedupe
