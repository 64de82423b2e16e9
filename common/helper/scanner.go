package helper

import "bufio"

// Claude completion streams can carry single content_block_delta frames far
// larger than bufio.Scanner's 64 KiB default token limit; a too-small limit
// aborts the whole stream with bufio.ErrTooLong mid-response.
const (
	scannerInitialBuffer = 64 * 1024
	scannerMaxToken      = 32 * 1024 * 1024
)

// ConfigureScannerBuffer raises scanner's buffer limits so one oversized
// frame doesn't kill the stream. Safe to call more than once on the same
// scanner.
func ConfigureScannerBuffer(scanner *bufio.Scanner) {
	if scanner == nil {
		return
	}
	scanner.Buffer(make([]byte, scannerInitialBuffer), scannerMaxToken)
}
