package transfer

import (
	"io"
	"time"
)

// Progress reporting thresholds
const (
	progressReportInterval = 50 * time.Millisecond
	progressReportBytes    = 64 * 1024
)

// progressReader wraps an io.Reader to report cumulative bytes read.
// Callbacks are throttled by bytes and elapsed time; the last read always reports.
type progressReader struct {
	reader         io.Reader
	read           int64
	lastReported   int64
	lastReportTime time.Time
	onProgress     ProgressFunc
}

func newProgressReader(r io.Reader, onProgress ProgressFunc) io.Reader {
	if onProgress == nil {
		return r
	}
	return &progressReader{reader: r, onProgress: onProgress, lastReportTime: time.Now()}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)
	}

	if pr.read > pr.lastReported {
		if pr.read-pr.lastReported >= progressReportBytes ||
			time.Since(pr.lastReportTime) >= progressReportInterval ||
			err != nil {
			pr.onProgress(pr.read)
			pr.lastReported = pr.read
			pr.lastReportTime = time.Now()
		}
	}
	return n, err
}
