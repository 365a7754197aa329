package usage

// Recorder receives tracker outcomes for metrics.
type Recorder interface {
	DownloadRecorded(tier string)
	DownloadRejected(tier string)
	UsageReset(outcome string)
	EventsPurged(n int64)
	StoreError(operation string)
}

type nopRecorder struct{}

func (nopRecorder) DownloadRecorded(string) {}
func (nopRecorder) DownloadRejected(string) {}
func (nopRecorder) UsageReset(string)       {}
func (nopRecorder) EventsPurged(int64)      {}
func (nopRecorder) StoreError(string)       {}
